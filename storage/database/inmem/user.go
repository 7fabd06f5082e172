package inmemdb

import (
	"context"
	"sort"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) CheckUniqueness(_ context.Context, nick, accessCode string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[int]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, usr := range repo.query() {
		if excluded[usr.ID] {
			continue
		}
		if nick != "" && usr.Nick == nick {
			return user.ErrNickExists
		}
		if accessCode != "" && usr.AccessCode == accessCode {
			return user.ErrAccessCodeExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = repo.db.nextPK()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(_ context.Context, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *userRepository) QueryUsersByID(_ context.Context, ids []int, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok {
			users = append(users, *usr)
		}
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByAccessCode(_ context.Context, code string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.AccessCode == code {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

// UpdateUser only saves set fields.
func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, isActive *bool, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Nick != "" {
		orig.Nick = usr.Nick
	}
	if usr.Figure != "" {
		orig.Figure = usr.Figure
	}
	if usr.AccessCode != "" {
		orig.AccessCode = usr.AccessCode
	}
	if usr.Role != "" {
		orig.Role = usr.Role
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = usr.UpdatedAt
	return *orig, nil
}

func (repo *userRepository) AdjustUserScore(_ context.Context, id, delta int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	usr.Score += delta
	return usr.Score, nil
}

func (repo *userRepository) GetUserScoreForUpdate(_ context.Context, id int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	return usr.Score, nil
}

func (repo *userRepository) QueryIcons(_ context.Context, _ ...core.DBExecutor) ([]user.Icon, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	icons := make([]user.Icon, len(repo.db.icons))
	copy(icons, repo.db.icons)
	sort.Slice(icons, func(i, j int) bool { return icons[i].DisplayOrder < icons[j].DisplayOrder })
	return icons, nil
}
