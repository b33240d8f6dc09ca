package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
	"github.com/thegupta1694/capstone/storage"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// trimmedOrNil normalizes optional free text: blank input becomes nil.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// translateRepoError maps repository sentinels onto the service taxonomy.
// Unknown errors are returned unchanged so callers can wrap them.
func translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrProfessorNotFound):
		return ErrProfessorNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrMembershipNotFound):
		return ErrMembershipNotFound
	case errors.Is(err, repositories.ErrApplicationNotFound):
		return ErrApplicationNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrDuplicateName
	case errors.Is(err, repositories.ErrApplicationConflict):
		return ErrDuplicateApplication
	case errors.Is(err, repositories.ErrMembershipConflict):
		return ErrAlreadyMember
	case errors.Is(err, repositories.ErrUserUsernameConflict):
		return ErrUsernameTaken
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrEmailTaken
	case errors.Is(err, repositories.ErrProfessorSlotsInvalid):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return err
}

// activeTeamOf is the single lookup for a user's current team: the team of
// their accepted membership.
func activeTeamOf(ctx context.Context, repos repositories.Repositories, userID int) (*models.Team, error) {
	m, err := repos.Memberships().GetAcceptedByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNoActiveTeam, userID)
		}
		return nil, fmt.Errorf("failed to get membership of user %d: %w", userID, err)
	}
	team, err := repos.Teams().GetByID(ctx, m.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team %d: %w", m.TeamID, translateRepoError(err))
	}
	return team, nil
}

// isAcceptedMember reports whether userID holds an accepted membership in teamID.
func isAcceptedMember(ctx context.Context, repos repositories.Repositories, teamID, userID int) (bool, error) {
	m, err := repos.Memberships().GetAcceptedByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get membership of user %d: %w", userID, err)
	}
	return m.TeamID == teamID, nil
}

func populateTeamLogoURL(team *models.Team, uploader storage.FileUploader) {
	if team != nil && team.LogoKey != nil && *team.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*team.LogoKey)
		if url != "" {
			team.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType maps an image content type to a file extension.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	case "image/svg+xml":
		return ".svg", nil
	}
	return "", fmt.Errorf("%w: unsupported image content type %q", ErrValidationFailed, contentType)
}
