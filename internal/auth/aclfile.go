package auth

import (
	"crypto/sha1" // #nosec G505 -- supported for compatibility with existing auth files, not the default algorithm
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"regexp"
	"sync/atomic"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// FileOperation is a coarse access level checked against an ACL file entry.
type FileOperation string

const (
	// OperationRead covers any operation that only reads registry state.
	OperationRead FileOperation = "Read"
	// OperationWrite covers any operation that mutates registry state.
	OperationWrite FileOperation = "Write"
)

// HashAlgorithm identifies how a password hash in the ACL file was derived.
type HashAlgorithm string

const (
	HashSHA1   HashAlgorithm = "sha1"
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
	HashScrypt HashAlgorithm = "scrypt"
)

const pbkdf2Iterations = 5000

// HashPasswordFile derives a password hash the same way the ACL file expects it,
// for use by the mkpasswd CLI and by FileAuthorizer itself.
func HashPasswordFile(algorithm HashAlgorithm, salt, password string) (string, error) {
	switch algorithm {
	case HashSHA1:
		return pbkdf2Hash(sha1.New, salt, password), nil
	case HashSHA256:
		return pbkdf2Hash(sha256.New, salt, password), nil
	case HashSHA512:
		return pbkdf2Hash(sha512.New, salt, password), nil
	case HashScrypt:
		derived, err := scrypt.Key([]byte(password), []byte(salt), 16384, 8, 1, 32)
		if err != nil {
			return "", fmt.Errorf("scrypt hashing password: %w", err)
		}
		return base64.StdEncoding.EncodeToString(derived), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

func pbkdf2Hash(newHash func() hash.Hash, salt, password string) string {
	derived := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, newHash().Size(), newHash)
	return base64.StdEncoding.EncodeToString(derived)
}

// fileCredential is one entry in the ACL file's "users" array.
type fileCredential struct {
	Username     string        `json:"username"`
	Algorithm    HashAlgorithm `json:"algorithm"`
	Salt         string        `json:"salt"`
	PasswordHash string        `json:"password_hash"`
}

func (c fileCredential) matches(password string) bool {
	computed, err := HashPasswordFile(c.Algorithm, c.Salt, password)
	if err != nil {
		return false
	}
	return ConstantTimeCompare(computed, c.PasswordHash)
}

// fileACLEntry is one entry in the ACL file's "permissions" array.
type fileACLEntry struct {
	Username  string
	Operation FileOperation
	Resource  *regexp.Regexp
}

type aclFileDocument struct {
	Users []fileCredential `json:"users"`
	Permissions []struct {
		Username  string `json:"username"`
		Operation string `json:"operation"`
		Resource  string `json:"resource"`
	} `json:"permissions"`
}

type aclFileState struct {
	users       map[string]fileCredential
	permissions []fileACLEntry
}

// FileAuthorizer authenticates and authorizes against a JSON ACL file: a flat
// list of users (with a hashed password) and a list of per-user, per-resource
// permission entries. It is loaded once at construction and can be reloaded
// in place by filewatch; readers always see a consistent snapshot.
type FileAuthorizer struct {
	path  string
	state atomic.Pointer[aclFileState]
}

// NewFileAuthorizer loads the ACL file at path. The initial load must succeed.
func NewFileAuthorizer(path string) (*FileAuthorizer, error) {
	state, err := loadACLFile(path)
	if err != nil {
		return nil, err
	}
	f := &FileAuthorizer{path: path}
	f.state.Store(state)
	return f, nil
}

func loadACLFile(path string) (*aclFileState, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading acl file: %w", err)
	}
	var doc aclFileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing acl file: %w", err)
	}

	users := make(map[string]fileCredential, len(doc.Users))
	for _, u := range doc.Users {
		users[u.Username] = u
	}

	permissions := make([]fileACLEntry, 0, len(doc.Permissions))
	for _, p := range doc.Permissions {
		resource, err := regexp.Compile(p.Resource)
		if err != nil {
			return nil, fmt.Errorf("compiling acl resource pattern %q: %w", p.Resource, err)
		}
		op := FileOperation(p.Operation)
		if op != OperationRead && op != OperationWrite {
			return nil, fmt.Errorf("unknown acl operation %q", p.Operation)
		}
		permissions = append(permissions, fileACLEntry{Username: p.Username, Operation: op, Resource: resource})
	}

	return &aclFileState{users: users, permissions: permissions}, nil
}

// Reload re-reads the ACL file. On failure the previously loaded state is
// kept untouched and the error is returned for the caller to log.
func (f *FileAuthorizer) Reload() error {
	state, err := loadACLFile(f.path)
	if err != nil {
		return err
	}
	f.state.Store(state)
	return nil
}

// Authenticate checks a username/password pair against the loaded users.
func (f *FileAuthorizer) Authenticate(username, password string) bool {
	cred, ok := f.state.Load().users[username]
	if !ok {
		return false
	}
	return cred.matches(password)
}

// Authorize reports whether username may perform operation against resource.
// A Write grant also satisfies a Read check, mirroring the convention that
// write access implies read access.
func (f *FileAuthorizer) Authorize(username string, operation FileOperation, resource string) bool {
	for _, entry := range f.state.Load().permissions {
		if entry.Username != username {
			continue
		}
		if operation == OperationWrite && entry.Operation != OperationWrite {
			continue
		}
		if entry.Resource.MatchString(resource) {
			return true
		}
	}
	return false
}
