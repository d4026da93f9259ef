package identity

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Seed is a YAML description of users, groups and permissions:
//
//	groups:
//	  - name: admin
//	    permissions: [manage_users]
//	users:
//	  - user_name: alice
//	    password: secret
//	    groups: [admin]
//	    foreign:
//	      - site: github
//	        id: "1234"
type Seed struct {
	Groups []SeedGroup `yaml:"groups"`
	Users  []SeedUser  `yaml:"users"`
}

type SeedGroup struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type SeedUser struct {
	UserName    string        `yaml:"user_name"`
	DisplayName string        `yaml:"display_name"`
	Email       string        `yaml:"email"`
	Password    string        `yaml:"password"`
	Groups      []string      `yaml:"groups"`
	Foreign     []SeedForeign `yaml:"foreign"`
}

type SeedForeign struct {
	Site string `yaml:"site"`
	ID   string `yaml:"id"`
}

// LoadSeed decodes seed data. Unknown fields are rejected. An empty
// document yields an empty seed.
func LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	for i, g := range s.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group #%d has no name", ErrInvalidSeed, i+1)
		}
	}
	for i, u := range s.Users {
		if u.UserName == "" {
			return fmt.Errorf("%w: user #%d has no user_name", ErrInvalidSeed, i+1)
		}
		for _, f := range u.Foreign {
			if f.Site == "" || f.ID == "" {
				return fmt.Errorf("%w: user %q has an incomplete foreign account", ErrInvalidSeed, u.UserName)
			}
		}
	}
	return nil
}

// Apply writes the seed to store. Existing users keep their password and
// profile but gain any missing groups and foreign links, so applying the
// same seed twice is harmless. Passwords are hashed with hasher; fold, if
// not nil, normalizes user names.
func (s *Seed) Apply(ctx context.Context, store Store, hasher *Hasher, fold Folder) error {
	if fold == nil {
		fold = NoFold
	}
	if hasher == nil {
		hasher = &Hasher{algorithm: AlgorithmNone}
	}

	for _, g := range s.Groups {
		for _, perm := range g.Permissions {
			if err := store.GrantPermission(ctx, g.Name, perm); err != nil {
				return errors.Join(ErrApplySeed, err)
			}
		}
	}

	for _, su := range s.Users {
		if err := applySeedUser(ctx, store, hasher, fold, su); err != nil {
			return errors.Join(ErrApplySeed, fmt.Errorf("user %q: %w", su.UserName, err))
		}
	}
	return nil
}

func applySeedUser(ctx context.Context, store Store, hasher *Hasher, fold Folder, su SeedUser) error {
	hashed, err := hasher.Encrypt(su.Password)
	if err != nil {
		return err
	}

	u := &User{
		UserName:    fold(su.UserName),
		DisplayName: su.DisplayName,
		Email:       su.Email,
		Password:    hashed,
	}
	err = store.CreateUser(ctx, u)
	if errors.Is(err, ErrUserExists) {
		u, err = store.UserByName(ctx, u.UserName)
	}
	if err != nil {
		return err
	}

	for _, g := range su.Groups {
		if err := store.AddUserToGroup(ctx, u.ID, g); err != nil {
			return err
		}
	}
	for _, f := range su.Foreign {
		if err := store.LinkForeignUser(ctx, f.Site, f.ID, u.ID); err != nil {
			return err
		}
	}
	return nil
}
