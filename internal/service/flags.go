package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"flagpole/internal/model"
	"flagpole/internal/repository"
	v1 "flagpole/pkg/api/v1"
	"flagpole/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxRunner executes fn inside one store transaction.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// FlagService is the resolution core: it computes effective flag values by
// layering defaults and overrides, reads through the cache service, and on
// every mutation writes the store first, invalidates second, broadcasts last.
type FlagService struct {
	flagRepo     repository.FlagInterface
	overrideRepo repository.OverrideInterface
	memberRepo   repository.MembershipInterface
	auditRepo    repository.AuditInterface
	userRepo     repository.UserInterface
	tx           TxRunner
	cache        *CacheService
	hub          *Hub
}

func NewFlagService(
	flagRepo repository.FlagInterface,
	overrideRepo repository.OverrideInterface,
	memberRepo repository.MembershipInterface,
	auditRepo repository.AuditInterface,
	userRepo repository.UserInterface,
	tx TxRunner,
	cache *CacheService,
	hub *Hub,
) *FlagService {
	return &FlagService{
		flagRepo:     flagRepo,
		overrideRepo: overrideRepo,
		memberRepo:   memberRepo,
		auditRepo:    auditRepo,
		userRepo:     userRepo,
		tx:           tx,
		cache:        cache,
		hub:          hub,
	}
}

// CreateFlagParams carries the createFlag request. OrganizationID zero means
// a personal flag owned by the acting user.
type CreateFlagParams struct {
	Key            string
	Type           string
	DefaultValue   string
	Description    string
	OrganizationID uint64
}

// UpdateFlagParams carries the updateFlag request; nil fields are left
// untouched.
type UpdateFlagParams struct {
	Key          *string
	DefaultValue *string
	Description  *string
}

// GetFlag returns the flag if the requesting user may see it. A cache hit is
// still re-checked against the requester's access: a stale entry may serve
// briefly outdated content but must never leak a flag across scopes. A hit
// that fails the access check falls through to the store, where the final
// verdict is made against fresh data.
func (s *FlagService) GetFlag(ctx context.Context, id, userID uint64) (*model.Flag, error) {
	if flag, ok := s.cache.GetFlag(ctx, id); ok {
		allowed, err := s.canAccess(ctx, flag, userID)
		if err == nil && allowed {
			return flag, nil
		}
	}

	flag, err := s.flagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: loading flag %d: %v", ErrStoreUnavailable, id, err)
	}
	if flag == nil {
		return nil, fmt.Errorf("%w: flag %d", ErrNotFound, id)
	}

	allowed, err := s.canAccess(ctx, flag, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: flag %d", ErrAccessDenied, id)
	}

	s.cache.SetFlag(ctx, flag)
	return flag, nil
}

func (s *FlagService) CreateFlag(ctx context.Context, params CreateFlagParams, ownerID uint64) (*model.Flag, error) {
	if strings.TrimSpace(params.Key) == "" {
		return nil, fmt.Errorf("%w: flag key must not be empty", ErrValidation)
	}
	if !v1.ValidType(params.Type) {
		return nil, fmt.Errorf("%w: unknown flag type %q", ErrValidation, params.Type)
	}

	scope := model.PersonalScope(ownerID)
	if params.OrganizationID != 0 {
		scope = model.OrganizationScope(params.OrganizationID)
		member, err := s.memberRepo.IsMember(ctx, params.OrganizationID, ownerID)
		if err != nil {
			return nil, fmt.Errorf("%w: membership check: %v", ErrStoreUnavailable, err)
		}
		if !member {
			return nil, fmt.Errorf("%w: not a member of organization %d", ErrAccessDenied, params.OrganizationID)
		}
	}

	exists, err := s.flagRepo.ExistsInScope(ctx, params.Key, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: key check: %v", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: flag key %q in this scope", ErrAlreadyExists, params.Key)
	}

	flag, err := model.NewFlag(params.Key, params.Type, params.DefaultValue, params.Description, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.flagRepo.Create(ctx, flag); err != nil {
		return nil, fmt.Errorf("%w: creating flag: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditFlagCreated, fmt.Sprintf("flag %q created", flag.Key), flag.ID, ownerID)
	s.invalidateScope(ctx, flag)
	s.hub.Broadcast(v1.EventFlagCreated, FlagView(flag))
	return flag, nil
}

func (s *FlagService) UpdateFlag(ctx context.Context, id uint64, params UpdateFlagParams, userID uint64) (*model.Flag, error) {
	if _, err := s.GetFlag(ctx, id, userID); err != nil {
		return nil, err
	}

	// Mutate the store's copy; a cached one may trail the last write.
	flag, err := s.flagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: loading flag %d: %v", ErrStoreUnavailable, id, err)
	}
	if flag == nil {
		return nil, fmt.Errorf("%w: flag %d", ErrNotFound, id)
	}

	if params.Key != nil && *params.Key != flag.Key {
		newKey := strings.TrimSpace(*params.Key)
		if newKey == "" {
			return nil, fmt.Errorf("%w: flag key must not be empty", ErrValidation)
		}
		exists, err := s.flagRepo.ExistsInScope(ctx, newKey, flag.Scope())
		if err != nil {
			return nil, fmt.Errorf("%w: key check: %v", ErrStoreUnavailable, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: flag key %q in this scope", ErrAlreadyExists, newKey)
		}
		flag.Key = newKey
	}
	if params.DefaultValue != nil {
		flag.DefaultValue = *params.DefaultValue
	}
	if params.Description != nil {
		flag.Description = *params.Description
	}

	if err := s.flagRepo.Save(ctx, flag); err != nil {
		return nil, fmt.Errorf("%w: saving flag: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditFlagUpdated, fmt.Sprintf("flag %q updated", flag.Key), flag.ID, userID)
	s.cache.InvalidateFlag(ctx, flag.ID)
	s.hub.Broadcast(v1.EventFlagUpdated, FlagView(flag))
	return flag, nil
}

// ToggleFlag flips the enabled bit, independent of the default value.
func (s *FlagService) ToggleFlag(ctx context.Context, id, userID uint64) (*model.Flag, error) {
	if _, err := s.GetFlag(ctx, id, userID); err != nil {
		return nil, err
	}

	// Flip against the store's current bit, not a possibly-stale cached copy.
	flag, err := s.flagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: loading flag %d: %v", ErrStoreUnavailable, id, err)
	}
	if flag == nil {
		return nil, fmt.Errorf("%w: flag %d", ErrNotFound, id)
	}

	flag.Enabled = !flag.Enabled
	if err := s.flagRepo.SetEnabled(ctx, flag.ID, flag.Enabled); err != nil {
		return nil, fmt.Errorf("%w: toggling flag: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditFlagToggled,
		fmt.Sprintf("flag %q toggled %s", flag.Key, enabledWord(flag.Enabled)), flag.ID, userID)
	s.cache.InvalidateFlag(ctx, flag.ID)
	s.hub.Broadcast(v1.EventFlagUpdated, FlagView(flag))
	return flag, nil
}

// IsFlagEnabled is the fast path for SDK evaluation hot loops: the enabled
// bit is cached under its own small key so a hit skips deserializing the
// whole flag. Access is still checked the same way as a full read.
func (s *FlagService) IsFlagEnabled(ctx context.Context, id, userID uint64) (bool, error) {
	if _, err := s.GetFlag(ctx, id, userID); err != nil {
		return false, err
	}

	if enabled, ok := s.cache.GetFlagEnabled(ctx, id); ok {
		return enabled, nil
	}
	enabled, err := s.flagRepo.IsEnabled(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: reading enabled bit: %v", ErrStoreUnavailable, err)
	}
	s.cache.SetFlagEnabled(ctx, id, enabled)
	return enabled, nil
}

func (s *FlagService) DeleteFlag(ctx context.Context, id, userID uint64) error {
	flag, err := s.GetFlag(ctx, id, userID)
	if err != nil {
		return err
	}

	// The store cascades override and audit cleanup.
	if err := s.flagRepo.Delete(ctx, flag.ID); err != nil {
		return fmt.Errorf("%w: deleting flag: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditFlagDeleted, fmt.Sprintf("flag %q deleted", flag.Key), flag.ID, userID)
	s.cache.InvalidateFlag(ctx, flag.ID)
	s.hub.Broadcast(v1.EventFlagDeleted, v1.FlagDeleted{ID: flag.ID, UserID: userID})
	return nil
}

// CreateOverride sets a per-user value. A pre-existing override for the same
// (flag, user) pair is superseded, never duplicated: the store only enforces
// uniqueness, so the stale row is removed here before the insert.
func (s *FlagService) CreateOverride(ctx context.Context, flagID, targetUserID uint64, value string, actorID uint64) (*model.Override, error) {
	flag, err := s.GetFlag(ctx, flagID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.overrideRepo.DeleteByFlagAndUser(ctx, flagID, targetUserID); err != nil {
		return nil, fmt.Errorf("%w: superseding override: %v", ErrStoreUnavailable, err)
	}

	override := &model.Override{FlagID: flagID, UserID: targetUserID, Value: value}
	if err := s.overrideRepo.Create(ctx, override); err != nil {
		return nil, fmt.Errorf("%w: creating override: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditOverrideCreated,
		fmt.Sprintf("override on flag %q for %s set to %q", flag.Key, s.userLabel(ctx, targetUserID), value),
		flagID, actorID)
	s.cache.InvalidateFlag(ctx, flagID)
	s.hub.Broadcast(v1.EventOverrideCreated, v1.OverrideView{
		ID:     override.ID,
		FlagID: flagID,
		UserID: targetUserID,
		Value:  value,
	})
	return override, nil
}

func (s *FlagService) DeleteOverride(ctx context.Context, overrideID, actorID uint64) error {
	override, err := s.overrideRepo.FindByID(ctx, overrideID)
	if err != nil {
		return fmt.Errorf("%w: loading override: %v", ErrStoreUnavailable, err)
	}
	if override == nil {
		return fmt.Errorf("%w: override %d", ErrNotFound, overrideID)
	}

	flag, err := s.flagRepo.GetByID(ctx, override.FlagID)
	if err != nil {
		return fmt.Errorf("%w: loading flag: %v", ErrStoreUnavailable, err)
	}
	if flag == nil {
		// An orphaned override has no scope left to authorize against;
		// refuse rather than let any authenticated user delete it.
		return fmt.Errorf("%w: flag %d", ErrNotFound, override.FlagID)
	}
	allowed, err := s.canAccess(ctx, flag, actorID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: flag %d", ErrAccessDenied, flag.ID)
	}

	if err := s.overrideRepo.DeleteByID(ctx, overrideID); err != nil {
		return fmt.Errorf("%w: deleting override: %v", ErrStoreUnavailable, err)
	}

	s.audit(ctx, model.AuditOverrideDeleted,
		fmt.Sprintf("override for %s removed", s.userLabel(ctx, override.UserID)),
		override.FlagID, actorID)
	s.cache.InvalidateFlag(ctx, override.FlagID)
	s.hub.Broadcast(v1.EventOverrideDeleted, v1.OverrideView{
		ID:     override.ID,
		FlagID: override.FlagID,
		UserID: override.UserID,
		Value:  override.Value,
	})
	return nil
}

// GetFlagsWithOverrides returns the user's resolved view: every flag visible
// to them (personal plus all their organizations) with any override layered
// over the default.
func (s *FlagService) GetFlagsWithOverrides(ctx context.Context, userID uint64) (map[string]v1.ResolvedFlag, error) {
	if view, ok := s.cache.GetResolvedView(ctx, userID); ok {
		return view, nil
	}

	orgIDs, err := s.memberRepo.OrganizationIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", ErrStoreUnavailable, err)
	}
	flags, err := s.flagRepo.ListVisibleToUser(ctx, userID, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: listing flags: %v", ErrStoreUnavailable, err)
	}
	overrides, err := s.overrideRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing overrides: %v", ErrStoreUnavailable, err)
	}

	byFlag := make(map[uint64]*model.Override, len(overrides))
	for i := range overrides {
		byFlag[overrides[i].FlagID] = &overrides[i]
	}

	view := make(map[string]v1.ResolvedFlag, len(flags))
	for _, flag := range flags {
		resolved := v1.ResolvedFlag{
			Key:         flag.Key,
			Type:        flag.Type,
			Value:       flag.DefaultValue,
			Enabled:     flag.Enabled,
			Description: flag.Description,
		}
		if o, ok := byFlag[flag.ID]; ok {
			resolved.Value = o.Value
			resolved.Overridden = true
		}
		view[flag.Key] = resolved
	}

	s.cache.SetResolvedView(ctx, userID, view)
	return view, nil
}

// ListFlagsForUser returns the user's personal flags.
func (s *FlagService) ListFlagsForUser(ctx context.Context, userID uint64) ([]model.Flag, error) {
	if flags, ok := s.cache.GetUserFlags(ctx, userID); ok {
		return flags, nil
	}
	flags, err := s.flagRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing flags: %v", ErrStoreUnavailable, err)
	}
	s.cache.SetUserFlags(ctx, userID, flags)
	return flags, nil
}

// ListFlagsForOrganization returns an organization's flags to one of its
// members.
func (s *FlagService) ListFlagsForOrganization(ctx context.Context, orgID, userID uint64) ([]model.Flag, error) {
	member, err := s.memberRepo.IsMember(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership check: %v", ErrStoreUnavailable, err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of organization %d", ErrAccessDenied, orgID)
	}

	if flags, ok := s.cache.GetOrganizationFlags(ctx, orgID); ok {
		return flags, nil
	}
	flags, err := s.flagRepo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing flags: %v", ErrStoreUnavailable, err)
	}
	s.cache.SetOrganizationFlags(ctx, orgID, flags)
	return flags, nil
}

// ImportFlagToOrganization moves a personal flag into an organization. The
// move is delete-plus-recreate, never an in-place scope change, so nothing
// keyed by the old id can silently point at a flag in a different scope.
func (s *FlagService) ImportFlagToOrganization(ctx context.Context, flagID, orgID, userID uint64) (*model.Flag, error) {
	flag, err := s.GetFlag(ctx, flagID, userID)
	if err != nil {
		return nil, err
	}
	if flag.IsOrganizational() {
		return nil, fmt.Errorf("%w: flag %d is already organizational", ErrValidation, flagID)
	}

	admin, err := s.memberRepo.IsAdmin(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership check: %v", ErrStoreUnavailable, err)
	}
	if !admin {
		return nil, fmt.Errorf("%w: importing requires organization admin", ErrAccessDenied)
	}

	return s.moveFlag(ctx, flag, model.OrganizationScope(orgID), model.AuditFlagImported, userID)
}

// ExportFlagToPersonal moves an organizational flag into the acting member's
// personal scope.
func (s *FlagService) ExportFlagToPersonal(ctx context.Context, flagID, userID uint64) (*model.Flag, error) {
	flag, err := s.GetFlag(ctx, flagID, userID)
	if err != nil {
		return nil, err
	}
	if !flag.IsOrganizational() {
		return nil, fmt.Errorf("%w: flag %d is already personal", ErrValidation, flagID)
	}

	return s.moveFlag(ctx, flag, model.PersonalScope(userID), model.AuditFlagExported, userID)
}

// ListAudits returns the audit trail of a flag the user can access.
func (s *FlagService) ListAudits(ctx context.Context, flagID, userID uint64) ([]model.AuditLog, error) {
	if _, err := s.GetFlag(ctx, flagID, userID); err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.ListByFlag(ctx, flagID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing audits: %v", ErrStoreUnavailable, err)
	}
	return entries, nil
}

func (s *FlagService) Health(ctx context.Context) error {
	if err := s.flagRepo.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// CacheAvailable reports the cache backend's reachability. Informational
// only; an unavailable cache degrades reads, it does not fail them.
func (s *FlagService) CacheAvailable(ctx context.Context) bool {
	return s.cache.Available(ctx)
}

// moveFlag realizes a scope change as create-in-destination plus
// delete-original, auditing both sides as one logical event.
func (s *FlagService) moveFlag(ctx context.Context, old *model.Flag, dest model.Scope, auditType string, userID uint64) (*model.Flag, error) {
	exists, err := s.flagRepo.ExistsInScope(ctx, old.Key, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: key check: %v", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: flag key %q in destination scope", ErrAlreadyExists, old.Key)
	}

	moved, err := model.NewFlag(old.Key, old.Type, old.DefaultValue, old.Description, dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	moved.Enabled = old.Enabled

	// The create and the delete must land together: a crash between them
	// would leave the flag live in both scopes, and no uniqueness constraint
	// spans scopes to catch it.
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		txFlags := s.flagRepo.WithTx(tx).(repository.FlagInterface)
		txAudits := s.auditRepo.WithTx(tx).(repository.AuditInterface)

		if err := txFlags.Create(ctx, moved); err != nil {
			return err
		}
		if err := txFlags.Delete(ctx, old.ID); err != nil {
			return err
		}
		return txAudits.Create(ctx, &model.AuditLog{
			Type:    auditType,
			Message: fmt.Sprintf("flag %q moved (was flag %d)", moved.Key, old.ID),
			FlagID:  moved.ID,
			ActorID: userID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: moving flag: %v", ErrStoreUnavailable, err)
	}

	// Both scopes are touched: purge broadly on each side.
	s.cache.InvalidateFlag(ctx, old.ID)
	s.cache.InvalidateFlag(ctx, moved.ID)
	s.invalidateScope(ctx, old)
	s.invalidateScope(ctx, moved)

	s.hub.Broadcast(v1.EventFlagDeleted, v1.FlagDeleted{ID: old.ID, UserID: userID})
	s.hub.Broadcast(v1.EventFlagCreated, FlagView(moved))
	return moved, nil
}

// canAccess implements the scope rule: personal flags are visible to their
// owner only, organizational flags to members of that organization.
func (s *FlagService) canAccess(ctx context.Context, flag *model.Flag, userID uint64) (bool, error) {
	if flag.OrganizationID != nil {
		member, err := s.memberRepo.IsMember(ctx, *flag.OrganizationID, userID)
		if err != nil {
			return false, fmt.Errorf("%w: membership check: %v", ErrStoreUnavailable, err)
		}
		return member, nil
	}
	return flag.OwnerUserID != nil && *flag.OwnerUserID == userID, nil
}

func (s *FlagService) invalidateScope(ctx context.Context, flag *model.Flag) {
	if flag.OrganizationID != nil {
		s.cache.InvalidateOrganization(ctx, *flag.OrganizationID)
		return
	}
	if flag.OwnerUserID != nil {
		s.cache.InvalidateUser(ctx, *flag.OwnerUserID)
	}
}

// audit is best effort: a failed audit write is logged, never propagated into
// the mutation that triggered it.
func (s *FlagService) audit(ctx context.Context, auditType, message string, flagID, actorID uint64) {
	entry := &model.AuditLog{Type: auditType, Message: message, FlagID: flagID, ActorID: actorID}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		logger.Warn("audit write failed",
			zap.String("type", auditType),
			zap.Uint64("flag_id", flagID),
			zap.Error(err))
	}
}

// userLabel names a user by email for audit messages, falling back to the raw
// id when the lookup fails. The lookup must never abort the caller.
func (s *FlagService) userLabel(ctx context.Context, userID uint64) string {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		if err != nil {
			logger.Warn("user lookup for audit failed", zap.Uint64("user_id", userID), zap.Error(err))
		}
		return "user " + strconv.FormatUint(userID, 10)
	}
	return user.Email
}

// FlagView builds the wire representation embedded in created/updated events.
func FlagView(flag *model.Flag) v1.FlagView {
	view := v1.FlagView{
		ID:           flag.ID,
		Key:          flag.Key,
		Type:         flag.Type,
		DefaultValue: flag.DefaultValue,
		Description:  flag.Description,
		Enabled:      flag.Enabled,
		CreatedAt:    flag.CreatedAt,
		UpdatedAt:    flag.UpdatedAt,
	}
	if flag.OwnerUserID != nil {
		view.OwnerUserID = *flag.OwnerUserID
	}
	if flag.OrganizationID != nil {
		view.OrganizationID = *flag.OrganizationID
	}
	return view
}

func enabledWord(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
