// Package authblocking decides whether a user may be created or sign in,
// optionally adjusting the record or the session.
package authblocking

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/outofoffice3/aws-samples/hermes/internal/docstore"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"github.com/outofoffice3/aws-samples/hermes/internal/userdir"
)

const (
	// error msgs
	DocumentsNilErrMsg = "document store is nil"

	DefaultAllowedDomain = "@acme.com"
	TrustedDomain        = "@facebook.com"
	SAMLProviderID       = "saml.my-provider-id"
	GuestName            = "Guest"
	BannedCollection     = "banned"
)

// Rejection messages returned to the client.
const (
	UnauthorizedEmailMsg  = "Unauthorized email"
	TrustedProviderMsg    = "You must register using a trusted provider."
	VerifyBeforeSignInMsg = "You must verify your email address before signing in."
	IPBannedMsg           = "IP banned."
	EmployeeIDClaim       = "employeeid"
)

// BeforeCreateResponse modifies the user being created. A nil response
// allows creation unchanged.
type BeforeCreateResponse struct {
	DisplayName   *string        `json:"displayName,omitempty"`
	EmailVerified *bool          `json:"emailVerified,omitempty"`
	PhotoURL      *string        `json:"photoUrl,omitempty"`
	CustomClaims  map[string]any `json:"customClaims,omitempty"`
}

// BeforeSignInResponse modifies the user or session on sign-in. A nil
// response allows sign-in unchanged.
type BeforeSignInResponse struct {
	EmailVerified *bool          `json:"emailVerified,omitempty"`
	SessionClaims map[string]any `json:"sessionClaims,omitempty"`
}

// AuthBlockingHandler holds every blocking gate.
type AuthBlockingHandler struct {
	Documents      docstore.Documents
	Directory      userdir.Directory
	AllowedDomain  string
	BannedIPs      []netip.Prefix
	Scorer         PhotoScorer
	PhotoThreshold float64
	PlaceholderURL string
	Verifications  VerificationSender
	Now            func() time.Time
	Logger         logger.Logger
}

type AuthBlockingHandlerConfig struct {
	Documents docstore.Documents
	// Directory, when set, receives the sign-in time of every allowed sign-in.
	Directory userdir.Directory
	// AllowedDomain defaults to @acme.com.
	AllowedDomain string
	BannedIPs     []netip.Prefix
	// Scorer, when set, enables sanitizeprofilephoto. Photos scoring above
	// PhotoThreshold (default 0.7) are replaced by PlaceholderURL.
	Scorer         PhotoScorer
	PhotoThreshold float64
	PlaceholderURL string
	// Verifications, when set, enables sendverification.
	Verifications VerificationSender
	Now           func() time.Time
	Logger        logger.Logger
}

func NewAuthBlockingHandler(config AuthBlockingHandlerConfig) (*AuthBlockingHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Documents == nil {
		return nil, handlers.LogAndReturnError(errors.New(DocumentsNilErrMsg), config.Logger)
	}
	if config.AllowedDomain == "" {
		config.AllowedDomain = DefaultAllowedDomain
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.PhotoThreshold <= 0 {
		config.PhotoThreshold = DefaultPhotoThreshold
	}
	return &AuthBlockingHandler{
		Documents:      config.Documents,
		Directory:      config.Directory,
		AllowedDomain:  config.AllowedDomain,
		BannedIPs:      config.BannedIPs,
		Scorer:         config.Scorer,
		PhotoThreshold: config.PhotoThreshold,
		PlaceholderURL: config.PlaceholderURL,
		Verifications:  config.Verifications,
		Now:            config.Now,
		Logger:         config.Logger,
	}, nil
}

// ParseBannedIPs parses a comma separated list of addresses and CIDR ranges.
func ParseBannedIPs(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("banned ip range %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("banned ip %q: %w", item, err)
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

type gate[T any] struct {
	kind event.Kind
	name string
	fn   func(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*T, error)
}

// bind registers g. allowed, when set, runs after g lets the user through.
func bind[T any](r *registry.Registry, g gate[T], allowed func(ctx context.Context, p sharedtypes.AuthBlockingPayload)) error {
	return r.Register(registry.Registration{
		Kind:  g.kind,
		Name:  g.name,
		Style: registry.StyleCallable,
		Handler: registry.Callable(func(ctx context.Context, env event.Envelope) (*T, error) {
			p, err := event.Decode[sharedtypes.AuthBlockingPayload](env)
			if err != nil {
				return nil, err
			}
			resp, err := g.fn(ctx, p)
			if err == nil && allowed != nil {
				allowed(ctx, p)
			}
			return resp, err
		}),
	})
}

// recordSignIn stores the sign-in time used by inactive account cleanup.
// A directory failure never blocks the sign-in.
func (h *AuthBlockingHandler) recordSignIn(ctx context.Context, p sharedtypes.AuthBlockingPayload) {
	if h.Directory == nil || p.Data.UID == "" {
		return
	}
	if err := h.Directory.RecordSignIn(ctx, p.Data.UID, h.Now()); err != nil {
		h.Logger.Warn("sign-in of %s not recorded: %v", p.Data.UID, err)
	}
}

// Register binds every before-create and before-sign-in gate.
func (h *AuthBlockingHandler) Register(r *registry.Registry) error {
	creates := []gate[BeforeCreateResponse]{
		{event.BeforeCreateValidateDomain, "validatenewuser", h.ValidateNewUser},
		{event.BeforeCreateDefaultName, "setdefaultname", h.SetDefaultName},
		{event.BeforeCreateRequireVerified, "requireverified", h.RequireVerified},
		{event.BeforeCreateMarkVerified, "markverified", h.MarkVerified},
		{event.BeforeCreateEmployeeID, "setemployeeid", h.SetEmployeeID},
	}
	if h.Verifications != nil {
		creates = append(creates, gate[BeforeCreateResponse]{event.BeforeCreateSendVerification, "sendverification", h.SendVerification})
	}
	if h.Scorer != nil {
		creates = append(creates, gate[BeforeCreateResponse]{event.BeforeCreateSanitizePhoto, "sanitizeprofilephoto", h.SanitizeProfilePhoto})
	}
	for _, g := range creates {
		if err := bind(r, g, nil); err != nil {
			return err
		}
	}
	signIns := []gate[BeforeSignInResponse]{
		{event.BeforeSignInRequireVerified, "requireverifiedsignin", h.RequireVerifiedSignIn},
		{event.BeforeSignInCopyClaims, "copyclaimstosession", h.CopyClaimsToSession},
		{event.BeforeSignInLogIP, "logip", h.LogIP},
		{event.BeforeSignInIPBan, "ipban", h.IPBan},
		{event.BeforeSignInCheckBannedEmail, "checkforban", h.CheckForBan},
	}
	for _, g := range signIns {
		if err := bind(r, g, h.recordSignIn); err != nil {
			return err
		}
	}
	return nil
}

func email(p sharedtypes.AuthBlockingPayload) (string, bool) {
	if p.Data.Email == nil {
		return "", false
	}
	return *p.Data.Email, true
}

// ValidateNewUser only lets users of the allowed domain sign up.
func (h *AuthBlockingHandler) ValidateNewUser(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	e, ok := email(p)
	if !ok || !strings.Contains(e, h.AllowedDomain) {
		h.Logger.Info("rejected sign-up of %s: outside %s", p.Data.UID, h.AllowedDomain)
		return nil, fnerr.New(fnerr.InvalidArgument, UnauthorizedEmailMsg)
	}
	return nil, nil
}

// SetDefaultName names users without a display name "Guest".
func (h *AuthBlockingHandler) SetDefaultName(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	name := GuestName
	if p.Data.DisplayName != nil {
		name = *p.Data.DisplayName
	}
	return &BeforeCreateResponse{DisplayName: &name}, nil
}

// RequireVerified rejects sign-ups with an unverified email.
func (h *AuthBlockingHandler) RequireVerified(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	if _, ok := email(p); ok && !p.Data.EmailVerified {
		return nil, fnerr.New(fnerr.InvalidArgument, TrustedProviderMsg)
	}
	return nil, nil
}

// MarkVerified trusts emails from the trusted domain as verified.
func (h *AuthBlockingHandler) MarkVerified(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	if e, ok := email(p); ok && strings.Contains(e, TrustedDomain) {
		verified := true
		return &BeforeCreateResponse{EmailVerified: &verified}, nil
	}
	return nil, nil
}

// SetEmployeeID copies the SAML employee id into the custom claims.
func (h *AuthBlockingHandler) SetEmployeeID(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	if p.Credential == nil || p.Credential.ProviderID != SAMLProviderID {
		return nil, nil
	}
	eid, ok := p.Credential.Claims[EmployeeIDClaim]
	if !ok {
		return nil, fnerr.Missing("credential.claims." + EmployeeIDClaim)
	}
	return &BeforeCreateResponse{CustomClaims: map[string]any{"eid": eid}}, nil
}

// SendVerification mails a verification link to new users with an
// unverified email. A delivery failure does not block the sign-up.
func (h *AuthBlockingHandler) SendVerification(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	e, ok := email(p)
	if !ok || p.Data.EmailVerified {
		return nil, nil
	}
	if err := h.Verifications.SendVerification(ctx, e); err != nil {
		h.Logger.Warn("verification mail for %s not sent: %v", p.Data.UID, err)
	}
	return nil, nil
}

// SanitizeProfilePhoto replaces a new user's photo when it scores above the
// threshold. A scoring failure keeps the photo.
func (h *AuthBlockingHandler) SanitizeProfilePhoto(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeCreateResponse, error) {
	if p.Data.PhotoURL == nil {
		return nil, nil
	}
	score, err := h.Scorer.Score(ctx, *p.Data.PhotoURL)
	if err != nil {
		h.Logger.Warn("photo of %s not scored: %v", p.Data.UID, err)
		return nil, nil
	}
	if score <= h.PhotoThreshold {
		return nil, nil
	}
	h.Logger.Info("replaced photo of %s: score %.2f", p.Data.UID, score)
	placeholder := h.PlaceholderURL
	return &BeforeCreateResponse{PhotoURL: &placeholder}, nil
}

// RequireVerifiedSignIn rejects sign-ins with an unverified email.
func (h *AuthBlockingHandler) RequireVerifiedSignIn(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeSignInResponse, error) {
	if _, ok := email(p); ok && !p.Data.EmailVerified {
		return nil, fnerr.New(fnerr.InvalidArgument, VerifyBeforeSignInMsg)
	}
	return nil, nil
}

// CopyClaimsToSession copies SAML role and groups into the session claims.
func (h *AuthBlockingHandler) CopyClaimsToSession(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeSignInResponse, error) {
	if p.Credential == nil || p.Credential.ProviderID != SAMLProviderID {
		return nil, nil
	}
	return &BeforeSignInResponse{SessionClaims: map[string]any{
		"role":   p.Credential.Claims["role"],
		"groups": p.Credential.Claims["groups"],
	}}, nil
}

// LogIP records the sign-in address in the session claims.
func (h *AuthBlockingHandler) LogIP(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeSignInResponse, error) {
	return &BeforeSignInResponse{SessionClaims: map[string]any{"signInIpAddress": p.IPAddress}}, nil
}

// IPBan rejects sign-ins from banned addresses.
func (h *AuthBlockingHandler) IPBan(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeSignInResponse, error) {
	if h.isSuspicious(p.IPAddress) {
		h.Logger.Warn("blocked sign-in of %s from %s", p.Data.UID, p.IPAddress)
		return nil, fnerr.New(fnerr.PermissionDenied, IPBannedMsg)
	}
	return nil, nil
}

func (h *AuthBlockingHandler) isSuspicious(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.BannedIPs {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// CheckForBan rejects sign-ins whose email has a document in the banned collection.
func (h *AuthBlockingHandler) CheckForBan(ctx context.Context, p sharedtypes.AuthBlockingPayload) (*BeforeSignInResponse, error) {
	e, _ := email(p)
	if e == "" {
		return nil, nil
	}
	_, banned, err := h.Documents.Get(ctx, BannedCollection, e)
	if err != nil {
		return nil, fmt.Errorf("ban lookup for %s: %w", p.Data.UID, err)
	}
	if banned {
		return nil, fnerr.New(fnerr.InvalidArgument, UnauthorizedEmailMsg)
	}
	return nil, nil
}
