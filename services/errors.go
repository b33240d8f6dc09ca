package services

import (
	"errors"
	"fmt"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	ErrValidationFailed   = errors.New("validation failed")
	ErrFeatureUnavailable = errors.New("feature is not configured")

	// Аутентификация и авторизация
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRoleViolation        = errors.New("operation not allowed for this role")
	ErrPermissionDenied     = errors.New("operation not allowed for the current user")

	// Состав команды
	ErrLeaderCannotLeave  = errors.New("team leader cannot leave the team")
	ErrCannotRemoveLeader = errors.New("cannot remove the team leader")
	ErrTeamFull           = errors.New("team already has the maximum number of members")
	ErrDuplicateName      = errors.New("team name is already in use")
	ErrDuplicateInvite    = errors.New("user already has a pending invitation to this team")
	ErrAlreadyMember      = errors.New("user is already a member of a team")
	ErrAlreadyLeader      = errors.New("user already leads a team")

	// Заявки и слоты
	ErrTooManyPending       = errors.New("team has too many pending applications")
	ErrNoSlots              = errors.New("professor has no available slots")
	ErrDuplicateApplication = errors.New("team has already applied to this professor")
	ErrNotPending           = errors.New("request is no longer pending")

	// Конфликты учетных записей
	ErrUsernameTaken = errors.New("username is already taken")
	ErrEmailTaken    = errors.New("email is already taken")
)

// Ошибки, специфичные для сущностей. Все они оборачивают ErrNotFound.
var (
	ErrUserNotFound        = fmt.Errorf("user: %w", ErrNotFound)
	ErrProfessorNotFound   = fmt.Errorf("professor: %w", ErrNotFound)
	ErrTeamNotFound        = fmt.Errorf("team: %w", ErrNotFound)
	ErrMembershipNotFound  = fmt.Errorf("team membership: %w", ErrNotFound)
	ErrApplicationNotFound = fmt.Errorf("application: %w", ErrNotFound)
	ErrNoActiveTeam        = fmt.Errorf("active team: %w", ErrNotFound)
)
