package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/thegupta1694/capstone/models"
	"github.com/thegupta1694/capstone/repositories"
)

type userRepository struct {
	b binding
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.b.run(ctx, func(st *state) error {
		if err := checkUserUnique(st, user); err != nil {
			return err
		}
		st.lastUserID++
		user.ID = st.lastUserID
		user.CreatedAt = r.b.now()
		st.users[user.ID] = copyUser(user)
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var out *models.User
	err := r.b.run(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repositories.ErrUserNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.b.run(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				out = copyUser(u)
				return nil
			}
		}
		return repositories.ErrUserNotFound
	})
	return out, err
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.b.run(ctx, func(st *state) error {
		stored, ok := st.users[user.ID]
		if !ok {
			return repositories.ErrUserNotFound
		}
		if err := checkUserUnique(st, user); err != nil {
			return err
		}
		stored.Email = user.Email
		stored.FirstName = user.FirstName
		stored.LastName = user.LastName
		stored.PhoneNumber = copyString(user.PhoneNumber)
		stored.Department = copyString(user.Department)
		return nil
	})
}

func (r *userRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	out := make([]*models.User, 0)
	err := r.b.run(ctx, func(st *state) error {
		search := strings.ToLower(filter.Search)
		for _, u := range st.users {
			if filter.Role != nil && u.Role != *filter.Role {
				continue
			}
			if search != "" && !containsAny(search, u.Username, u.FirstName, u.LastName) {
				continue
			}
			out = append(out, publicUser(u))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *models.User) int { return strings.Compare(a.Username, b.Username) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	counts := make(map[models.UserRole]int)
	err := r.b.run(ctx, func(st *state) error {
		for _, u := range st.users {
			counts[u.Role]++
		}
		return nil
	})
	return counts, err
}

// checkUserUnique mirrors users_username_key and users_email_key.
func checkUserUnique(st *state, user *models.User) error {
	for id, u := range st.users {
		if id == user.ID {
			continue
		}
		if u.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	return nil
}
