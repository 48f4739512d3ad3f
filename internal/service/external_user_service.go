package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	externalUsersURL      = "https://jsonplaceholder.typicode.com/users"
	externalUsersCacheKey = "external_users:jsonplaceholder:all"
	externalUsersCacheTTL = 10 * time.Minute
	externalUsersTimeout  = 6 * time.Second
)

// ExternalUser is a directory entry from the upstream user provider.
type ExternalUser struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SyncedUser summarizes a local account created or refreshed by a sync.
type SyncedUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ExternalUserService imports users from an external directory, with the
// same cache-as-safety-net pattern as the data proxy: upstream failures are
// answered from cache when possible.
type ExternalUserService struct {
	users      repository.UserRepository
	cache      cache.Store
	client     HTTPDoer
	bcryptCost int
	logger     *zap.Logger
}

// NewExternalUserService constructs the service. A nil client gets a
// default http.Client with the directory timeout.
func NewExternalUserService(users repository.UserRepository, store cache.Store, client HTTPDoer, bcryptCost int, logger *zap.Logger) *ExternalUserService {
	if client == nil {
		client = &http.Client{Timeout: externalUsersTimeout}
	}
	return &ExternalUserService{
		users:      users,
		cache:      store,
		client:     client,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// GetUsers fetches the external directory. The second return reports
// whether the result was served from cache fallback.
func (s *ExternalUserService) GetUsers(ctx context.Context) ([]ExternalUser, bool, error) {
	payload, err := s.fetch(ctx)
	if err == nil {
		var users []ExternalUser
		if jsonErr := json.Unmarshal(payload, &users); jsonErr == nil {
			if cacheErr := s.cache.Set(ctx, externalUsersCacheKey, payload, externalUsersCacheTTL); cacheErr != nil {
				s.logger.Warn("external_users.cache.put_failed", zap.Error(cacheErr))
			}
			return users, false, nil
		}
		err = errors.New("malformed external users payload")
	}

	entry, cacheErr := s.cache.Get(ctx, externalUsersCacheKey)
	if cacheErr != nil {
		s.logger.Warn("external_users.cache.get_failed", zap.Error(cacheErr))
	}
	if entry != nil {
		var users []ExternalUser
		if jsonErr := json.Unmarshal(entry.Payload, &users); jsonErr == nil {
			s.logger.Info("external_users.cache.fallback", zap.Error(err))
			return users, true, nil
		}
	}
	return nil, false, apperrors.NewDomainError("EXTERNAL_USERS_UNAVAILABLE",
		"External users service unavailable.", http.StatusServiceUnavailable, nil)
}

// SyncByIDs upserts the selected external users into the local users table
// with the reporter role and a random password.
func (s *ExternalUserService) SyncByIDs(ctx context.Context, ids []int) ([]SyncedUser, error) {
	externalUsers, _, err := s.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	synced := []SyncedUser{}
	for _, external := range externalUsers {
		if _, ok := wanted[external.ID]; !ok {
			continue
		}
		if external.Email == "" || external.Name == "" {
			continue
		}

		user, err := s.users.GetByEmail(ctx, external.Email)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			hash, hashErr := auth.HashPassword(uuid.NewString(), s.bcryptCost)
			if hashErr != nil {
				return nil, hashErr
			}
			user = &domain.User{
				Name:         external.Name,
				Email:        external.Email,
				PasswordHash: hash,
				Role:         domain.RoleReporter,
			}
			if createErr := s.users.Create(ctx, user); createErr != nil {
				return nil, createErr
			}
		case err != nil:
			return nil, err
		default:
			if user.Name != external.Name {
				user.Name = external.Name
				if updateErr := s.users.Update(ctx, user); updateErr != nil {
					return nil, updateErr
				}
			}
		}

		synced = append(synced, SyncedUser{ID: user.ID, Name: user.Name, Email: user.Email})
	}
	return synced, nil
}

func (s *ExternalUserService) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, externalUsersTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, externalUsersURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("external users service returned " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
