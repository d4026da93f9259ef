package identity

import (
	"context"
	"errors"
	"log/slog"
)

// Provider validates credentials and loads the identity linked to a visit.
type Provider interface {
	// ValidateIdentity checks the credentials and, on success, links the
	// visit to the user. Unknown users and wrong passwords both yield
	// (nil, nil).
	ValidateIdentity(ctx context.Context, userName, password, visitKey string) (*Identity, error)
	// ValidateForeignUser is ValidateIdentity for an account proven by an
	// external site.
	ValidateForeignUser(ctx context.Context, siteID, foreignID, visitKey string) (*Identity, error)
	// LoadIdentity returns the identity linked to visitKey, or an anonymous
	// identity carrying visitKey.
	LoadIdentity(ctx context.Context, visitKey string) (*Identity, error)
	AnonymousIdentity() *Identity
	// AuthenticatedIdentity builds an identity for user with no visit.
	AuthenticatedIdentity(user *User) *Identity
	ValidatePassword(user *User, userName, password string) bool
	// CreateProviderModel creates the backing schema. It is idempotent.
	CreateProviderModel(ctx context.Context) error
	Login(ctx context.Context, id *Identity) error
	// Logout unlinks the visit and returns an anonymous identity for it.
	Logout(ctx context.Context, id *Identity) (*Identity, error)
}

// StoreProvider implements Provider on top of a Store.
type StoreProvider struct {
	store  Store
	hasher *Hasher
	fold   Folder
	logger *slog.Logger

	// dummyHash is verified against for unknown users so both failure
	// paths cost the same.
	dummyHash string
}

// ProviderOption configures a StoreProvider.
type ProviderOption func(*StoreProvider)

// WithHasher sets the password hasher. Default: plain text ("none").
func WithHasher(h *Hasher) ProviderOption {
	return func(p *StoreProvider) {
		if h != nil {
			p.hasher = h
		}
	}
}

// WithUserNameFolding normalizes user names with fold before lookups.
func WithUserNameFolding(fold Folder) ProviderOption {
	return func(p *StoreProvider) {
		if fold != nil {
			p.fold = fold
		}
	}
}

func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(p *StoreProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewStoreProvider creates a provider backed by store.
func NewStoreProvider(store Store, opts ...ProviderOption) (*StoreProvider, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &StoreProvider{
		store:  store,
		hasher: &Hasher{algorithm: AlgorithmNone},
		fold:   NoFold,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	dummy, err := p.hasher.Encrypt("gearshift-dummy-password")
	if err != nil {
		return nil, err
	}
	p.dummyHash = dummy
	return p, nil
}

func (p *StoreProvider) Store() Store { return p.store }

func (p *StoreProvider) Hasher() *Hasher { return p.hasher }

// FoldName applies the provider's user-name normalization.
func (p *StoreProvider) FoldName(s string) string { return p.fold(s) }

func (p *StoreProvider) CreateProviderModel(ctx context.Context) error {
	if err := p.store.CreateModel(ctx); err != nil {
		return errors.Join(ErrCreateModel, err)
	}
	return nil
}

func (p *StoreProvider) ValidateIdentity(ctx context.Context, userName, password, visitKey string) (*Identity, error) {
	name := p.fold(userName)

	user, err := p.store.UserByName(ctx, name)
	if errors.Is(err, ErrUserNotFound) {
		p.hasher.Verify(p.dummyHash, password)
		p.logger.WarnContext(ctx, "no such user", slog.String("user_name", name))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !p.ValidatePassword(user, name, password) {
		p.logger.InfoContext(ctx, "passwords do not match", slog.String("user_name", name))
		return nil, nil
	}

	return p.authenticate(ctx, user, visitKey)
}

func (p *StoreProvider) ValidateForeignUser(ctx context.Context, siteID, foreignID, visitKey string) (*Identity, error) {
	user, err := p.store.UserByForeignID(ctx, siteID, foreignID)
	if errors.Is(err, ErrUserNotFound) {
		p.logger.WarnContext(ctx, "no local user for foreign account",
			slog.String("site", siteID),
			slog.String("foreign_id", foreignID),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.authenticate(ctx, user, visitKey)
}

func (p *StoreProvider) authenticate(ctx context.Context, user *User, visitKey string) (*Identity, error) {
	id := NewAuthenticated(user, visitKey)
	if visitKey == "" {
		return id, nil
	}

	p.logger.InfoContext(ctx, "associating user with visit",
		slog.String("user_name", user.UserName),
		slog.String("visit_key", visitKey),
	)
	if err := p.Login(ctx, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (p *StoreProvider) ValidatePassword(user *User, _ string, password string) bool {
	if user == nil {
		return false
	}
	return p.hasher.Verify(user.Password, password)
}

func (p *StoreProvider) LoadIdentity(ctx context.Context, visitKey string) (*Identity, error) {
	if visitKey == "" {
		return NewAnonymous(""), nil
	}

	userID, err := p.store.UserIDForVisit(ctx, visitKey)
	if errors.Is(err, ErrNotLinked) {
		return NewAnonymous(visitKey), nil
	}
	if err != nil {
		return nil, err
	}

	user, err := p.store.UserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		p.logger.WarnContext(ctx, "visit linked to missing user", slog.String("visit_key", visitKey))
		return NewAnonymous(visitKey), nil
	}
	if err != nil {
		return nil, err
	}
	return NewAuthenticated(user, visitKey), nil
}

func (p *StoreProvider) AnonymousIdentity() *Identity {
	return NewAnonymous("")
}

func (p *StoreProvider) AuthenticatedIdentity(user *User) *Identity {
	return NewAuthenticated(user, "")
}

// Login links the identity's visit to its user. Identities without a visit
// are left alone.
func (p *StoreProvider) Login(ctx context.Context, id *Identity) error {
	if id.Anonymous() {
		return ErrAnonymousLogin
	}
	if id.VisitKey == "" {
		return nil
	}
	return p.store.LinkVisit(ctx, id.VisitKey, id.User.ID)
}

func (p *StoreProvider) Logout(ctx context.Context, id *Identity) (*Identity, error) {
	if id == nil || id.VisitKey == "" {
		return NewAnonymous(""), nil
	}
	if err := p.store.UnlinkVisit(ctx, id.VisitKey); err != nil && !errors.Is(err, ErrNotLinked) {
		return nil, err
	}
	return NewAnonymous(id.VisitKey), nil
}

// ApplySeed writes seed through the provider's hasher and user-name folding.
func (p *StoreProvider) ApplySeed(ctx context.Context, seed *Seed) error {
	return seed.Apply(ctx, p.store, p.hasher, p.fold)
}

var _ Provider = (*StoreProvider)(nil)
