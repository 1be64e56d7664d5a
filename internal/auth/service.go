package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// Logger is the logging surface the service needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Service handles logins, sessions and user provisioning.
type Service struct {
	db       *sql.DB
	users    *SQLiteUserRepository
	sessions *SQLiteSessionRepository
	secret   string
	ttl      time.Duration
	logger   Logger
	now      func() time.Time
}

// NewService returns a Service signing tokens with secret for ttl.
func NewService(db *sql.DB, secret string, ttl time.Duration) *Service {
	return &Service{
		db:       db,
		users:    NewUserRepository(db),
		sessions: NewSessionRepository(db),
		secret:   secret,
		ttl:      ttl,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Users returns the underlying user repository.
func (s *Service) Users() *SQLiteUserRepository {
	return s.users
}

// Login checks credentials and opens a session. The response groups the
// user's roles per site plus the global roles, deduplicated by role id.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password of user %d: %w", user.ID, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	ua, err := access.ResolveTx(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	token, claims, err := IssueToken(user, s.secret, s.ttl, s.now())
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
		Sites:       make([]SiteGrant, 0, len(ua.AccessibleSites)),
		GlobalRoles: ua.GlobalRoles,
	}
	for _, site := range ua.AccessibleSites {
		session.Sites = append(session.Sites, SiteGrant{ID: site.ID, Name: site.Name, Roles: ua.SiteRoles[site.ID]})
	}
	s.logger.Info("user logged in", "user_id", user.ID, "session_id", claims.SessionID)
	return session, nil
}

// Authenticate validates a bearer token and rejects logged-out sessions.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		return nil, err
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the session named by claims. Failures are logged and
// swallowed so logging out always succeeds.
func (s *Service) Logout(ctx context.Context, claims *Claims) {
	if claims == nil {
		return
	}
	uid, err := claims.UserID()
	if err != nil {
		return
	}
	expires := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID, uid, expires); err != nil {
		s.logger.Warn("session revocation failed", "session_id", claims.SessionID, "error", err)
	}
}

// RunPruner deletes expired revocations every interval until ctx is done.
func (s *Service) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.Prune(ctx, s.now())
			if err != nil {
				s.logger.Warn("pruning revoked sessions failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("pruned revoked sessions", "count", n)
			}
		}
	}
}

// Profile returns the user's distinct role names and the sites they reach.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ua, err := access.ResolveTx(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	p := &Profile{ID: user.ID, Login: user.Login, Roles: []string{}, Sites: []ProfileSite{}}
	seen := map[string]bool{}
	addRoles := func(roles []access.Role) {
		for _, r := range roles {
			if !seen[r.Name] {
				seen[r.Name] = true
				p.Roles = append(p.Roles, r.Name)
			}
		}
	}
	addRoles(ua.GlobalRoles)
	for _, site := range ua.AccessibleSites {
		addRoles(ua.SiteRoles[site.ID])
		p.Sites = append(p.Sites, ProfileSite{ID: site.ID, Name: site.Name})
	}
	return p, nil
}

// CreateUser creates a user and its associations in one transaction.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*User, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{Login: in.Login, PasswordHash: hash}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		for _, roleID := range in.GlobalRoles {
			if err := access.CreateTx(ctx, tx, &access.Association{UserID: user.ID, RoleID: roleID}); err != nil {
				return err
			}
		}
		return grantSites(ctx, tx, user.ID, in.RolesBySite)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", user.ID, "login", user.Login)
	return user, nil
}

// UpdateUser changes login, password and site roles in one transaction.
func (s *Service) UpdateUser(ctx context.Context, userID int64, upd RelationsUpdate) (*User, error) {
	var hash string
	if upd.Password != nil {
		if err := ValidatePassword(*upd.Password); err != nil {
			return nil, err
		}
		h, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	var user *User
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if user, err = getUser(ctx, tx, `id = ?`, userID); err != nil {
			return err
		}
		if upd.Login != nil {
			if user, err = updateLogin(ctx, tx, userID, *upd.Login); err != nil {
				return err
			}
		}
		if hash != "" {
			if err := updatePassword(ctx, tx, userID, hash); err != nil {
				return err
			}
		}
		if upd.RolesBySite == nil && !upd.Replace {
			return nil
		}
		if upd.Replace {
			if err := access.DeleteUserTx(ctx, tx, userID); err != nil {
				return err
			}
		} else {
			for siteID := range upd.RolesBySite {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM user_site_roles WHERE user_id = ? AND site_id = ?`, userID, siteID); err != nil {
					return fmt.Errorf("clearing roles of user %d on site %d: %w", userID, siteID, err)
				}
			}
		}
		return grantSites(ctx, tx, userID, upd.RolesBySite)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func grantSites(ctx context.Context, tx *sql.Tx, userID int64, rolesBySite map[int64]int64) error {
	for siteID, roleID := range rolesBySite {
		site := siteID
		if err := access.CreateTx(ctx, tx, &access.Association{UserID: userID, SiteID: &site, RoleID: roleID}); err != nil {
			return err
		}
	}
	return nil
}

// AssignGlobalRole grants roleID to the user on every site.
func (s *Service) AssignGlobalRole(ctx context.Context, userID, roleID int64) (*access.Association, error) {
	a := &access.Association{UserID: userID, RoleID: roleID}
	if err := access.NewAssociationRepository(s.db).Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DefaultSiteRole is granted when a site is added to a user without a role.
const DefaultSiteRole = "user"

// AddSite grants the default role on siteID to the user.
func (s *Service) AddSite(ctx context.Context, userID, siteID int64) (*access.Association, error) {
	role, err := access.NewRoleRepository(s.db).GetByName(ctx, DefaultSiteRole)
	if err != nil {
		return nil, err
	}
	a := &access.Association{UserID: userID, SiteID: &siteID, RoleID: role.ID}
	if err := access.NewAssociationRepository(s.db).Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
