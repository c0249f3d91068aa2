package dynamodb

import (
	"context"
	"fmt"

	"collective-rides/application/ports"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// MembershipRepository stores memberships as a canonical item under the club partition, a
// user index item on GSI1 and a club-member index item on GSI2 keyed by role
type MembershipRepository struct {
	store
}

// NewMembershipRepository creates a new MembershipRepository
func NewMembershipRepository(client API, table Table, tracer *observability.Tracer, logger *zap.Logger) *MembershipRepository {
	return &MembershipRepository{store: newStore(client, table, tracer, logger)}
}

var _ ports.MembershipRepository = (*MembershipRepository)(nil)

// membershipPuts builds the canonical put, guarded by cond, and both index puts
func (s store) membershipPuts(m *entities.Membership, cond *expression.ConditionBuilder) ([]types.TransactWriteItem, error) {
	canonical, err := s.put(membershipCanonicalItem(m), cond)
	if err != nil {
		return nil, err
	}
	userIndex, err := s.put(membershipUserIndexItem(m), nil)
	if err != nil {
		return nil, err
	}
	clubIndex, err := s.put(membershipClubIndexItem(m), nil)
	if err != nil {
		return nil, err
	}
	return []types.TransactWriteItem{canonical, userIndex, clubIndex}, nil
}

// membershipUnchanged holds while the stored membership is still m with m's status and role
func membershipUnchanged(m *entities.Membership) expression.ConditionBuilder {
	return expression.Name("MembershipID").Equal(expression.Value(m.ID().String())).
		And(expression.Name(attrStatus).Equal(expression.Value(string(m.Status())))).
		And(expression.Name("Role").Equal(expression.Value(string(m.Role()))))
}

// Create stores a new membership. A removed membership for the same club and user is
// replaced. When another membership already holds the key the stored one is returned with
// ErrConflict; replaying the same membership returns it without error.
func (r *MembershipRepository) Create(ctx context.Context, m *entities.Membership) (*entities.Membership, error) {
	existing, err := r.Get(ctx, m.ClubID(), m.UserID())
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID() == m.ID() {
		return existing, nil
	}
	if existing != nil && !existing.IsRemoved() {
		return existing, r.conflict(m)
	}

	cond := expression.AttributeNotExists(expression.Name(attrPK))
	var staleIndex *itemKey
	if existing != nil {
		cond = expression.Name(attrStatus).Equal(expression.Value(string(entities.MembershipStatusRemoved))).
			And(expression.Name("MembershipID").Equal(expression.Value(existing.ID().String())))
		if existing.Role() != m.Role() {
			key := clubMemberKey(existing.ClubID(), existing.Role(), existing.UserID())
			staleIndex = &key
		}
	}

	items, err := r.membershipPuts(m, &cond)
	if err != nil {
		return nil, err
	}
	if staleIndex != nil {
		items = append(items, r.del(*staleIndex))
	}

	if err := r.transact(ctx, "CreateMembership", items); err != nil {
		if !isCancelled(err) {
			return nil, fmt.Errorf("failed to create membership: %w", err)
		}
		stored, getErr := r.Get(ctx, m.ClubID(), m.UserID())
		if getErr != nil {
			return nil, getErr
		}
		if stored != nil && stored.ID() == m.ID() {
			return stored, nil
		}
		return stored, r.conflict(m)
	}

	r.logger.Info("Membership stored",
		zap.String("clubID", m.ClubID().String()),
		zap.String("userID", m.UserID()),
		zap.String("status", string(m.Status())),
		zap.Bool("replacedRemoved", existing != nil),
	)
	return m, nil
}

func (r *MembershipRepository) conflict(m *entities.Membership) error {
	return ports.NewConflict(ports.ResourceMembership, m.ClubID().String()+"#"+m.UserID(), "membership already exists")
}

// Get returns the membership of userID in clubID, or nil
func (r *MembershipRepository) Get(ctx context.Context, clubID valueobjects.ClubID, userID string) (*entities.Membership, error) {
	av, err := r.getItem(ctx, "GetMembership", membershipKey(clubID, userID))
	if err != nil || av == nil {
		return nil, err
	}
	var item membershipItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal membership: %w", err)
	}
	return item.toEntity()
}

// Update writes after over before together with both index items. The write only applies while
// the stored status and role still match before; a role change moves the club-member index item.
func (r *MembershipRepository) Update(ctx context.Context, before, after *entities.Membership) error {
	unchanged := membershipUnchanged(before)
	items, err := r.membershipPuts(after, &unchanged)
	if err != nil {
		return err
	}
	if before.Role() != after.Role() {
		items = append(items, r.del(clubMemberKey(before.ClubID(), before.Role(), before.UserID())))
	}

	if err := r.transact(ctx, "UpdateMembership", items); err != nil {
		if !isCancelled(err) {
			return fmt.Errorf("failed to update membership: %w", err)
		}
		id := before.ClubID().String() + "#" + before.UserID()
		if isRetryableConflict(err) {
			return ports.NewConflict(ports.ResourceMembership, id, "concurrent transaction")
		}
		current, getErr := r.Get(ctx, before.ClubID(), before.UserID())
		if getErr != nil {
			return getErr
		}
		if current == nil || current.ID() != before.ID() {
			return ports.NewNotFound(ports.ResourceMembership, id)
		}
		return ports.NewConflict(ports.ResourceMembership, id, "membership was modified concurrently")
	}

	r.logger.Debug("Membership updated",
		zap.String("clubID", after.ClubID().String()),
		zap.String("userID", after.UserID()),
		zap.String("status", string(after.Status())),
		zap.String("role", string(after.Role())),
	)
	return nil
}

// ListByClub pages through the club-member index ordered by role then user
func (r *MembershipRepository) ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts ports.MemberListOptions) (ports.Page[*entities.Membership], error) {
	q := pageQuery{
		op:         "ListClubMembers",
		index:      indexGSI2,
		partition:  clubMembersPK(clubID),
		sortPrefix: clubMemberRolePrefix(opts.Role),
		filter:     statusFilter(string(opts.Status)),
		limit:      opts.EffectiveLimit(),
		cursor:     opts.Cursor,
	}
	return r.membershipPage(ctx, q)
}

// ListByUser pages through the user's memberships ordered by club id
func (r *MembershipRepository) ListByUser(ctx context.Context, userID string, opts ports.UserMembershipListOptions) (ports.Page[*entities.Membership], error) {
	q := pageQuery{
		op:         "ListUserMemberships",
		index:      indexGSI1,
		partition:  userPK(userID),
		sortPrefix: userMembershipPrefix,
		filter:     statusFilter(string(opts.Status)),
		limit:      opts.EffectiveLimit(),
		cursor:     opts.Cursor,
	}
	return r.membershipPage(ctx, q)
}

func (r *MembershipRepository) membershipPage(ctx context.Context, q pageQuery) (ports.Page[*entities.Membership], error) {
	raw, next, hasMore, err := r.queryPage(ctx, q)
	if err != nil {
		return ports.Page[*entities.Membership]{}, err
	}
	memberships, err := decodeItems(raw, membershipItem.toEntity)
	if err != nil {
		return ports.Page[*entities.Membership]{}, err
	}
	return ports.Page[*entities.Membership]{Items: memberships, NextCursor: next, HasMore: hasMore}, nil
}

// statusFilter returns a Status equality filter, or nil for no filtering
func statusFilter(status string) *expression.ConditionBuilder {
	if status == "" {
		return nil
	}
	filter := expression.Name(attrStatus).Equal(expression.Value(status))
	return &filter
}
