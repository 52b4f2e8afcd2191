// Package auth authenticates users and mints session tokens. Credential
// checks go to the auth service when one is registered; otherwise the local
// seeded store answers, which keeps a single-binary deployment usable.
package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	dErrors "lexgate/pkg/domain-errors"
)

// Identity is an authenticated user as the token service needs it.
type Identity struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	OfficeID    string   `json:"office_id,omitempty"`
}

type record struct {
	hash     []byte
	identity Identity
}

// Store is an in-memory credential store guarded for concurrent logins and
// registrations.
type Store struct {
	mu    sync.RWMutex
	users map[string]record
}

// seedUser describes one development account created at startup.
type seedUser struct {
	username    string
	password    string
	roles       []string
	permissions []string
	officeID    string
}

var seedUsers = []seedUser{
	{"admin", "admin123", []string{"admin", "lawyer", "user"}, []string{"read", "write", "delete", "orchestrate"}, "office-admin"},
	{"lawyer", "lawyer123", []string{"lawyer", "user"}, []string{"read", "write", "orchestrate"}, "office-lawyer"},
	{"intern", "intern123", []string{"user"}, []string{"read"}, "office-intern"},
}

// NewSeededStore builds the store with the development accounts. Production
// deployments register an auth service and this store never answers a login.
func NewSeededStore() (*Store, error) {
	s := &Store{users: make(map[string]record, len(seedUsers))}
	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.users[u.username] = record{
			hash: hash,
			identity: Identity{
				Username:    u.username,
				Roles:       u.roles,
				Permissions: u.permissions,
				OfficeID:    u.officeID,
			},
		}
	}
	return s, nil
}

// dummyHash is compared against when the username does not exist, so a miss
// costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lexgate-no-such-user"), bcrypt.DefaultCost)

// Authenticate verifies the credentials. Unknown users and wrong passwords
// are indistinguishable to the caller.
func (s *Store) Authenticate(username, password string) (Identity, error) {
	s.mu.RLock()
	rec, ok := s.users[username]
	s.mu.RUnlock()

	hash := dummyHash
	if ok {
		hash = rec.hash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return rec.identity, nil
}

// Create adds a user. Duplicate usernames conflict.
func (s *Store) Create(identity Identity, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hashing password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[identity.Username]; exists {
		return dErrors.New(dErrors.CodeConflict, "username already exists")
	}
	s.users[identity.Username] = record{hash: hash, identity: identity}
	return nil
}
