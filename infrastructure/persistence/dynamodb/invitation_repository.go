package dynamodb

import (
	"context"
	"fmt"
	"time"

	"collective-rides/application/ports"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// InvitationRepository stores invitations as a canonical item plus an invitee index and a
// club index on GSI1, and a pending-by-expiry index on GSI2 that exists only while pending
type InvitationRepository struct {
	store
}

// NewInvitationRepository creates a new InvitationRepository
func NewInvitationRepository(client API, table Table, tracer *observability.Tracer, logger *zap.Logger) *InvitationRepository {
	return &InvitationRepository{store: newStore(client, table, tracer, logger)}
}

var _ ports.InvitationRepository = (*InvitationRepository)(nil)

// Create stores a new invitation with all of its index items
func (r *InvitationRepository) Create(ctx context.Context, inv *entities.Invitation) error {
	notExists := expression.AttributeNotExists(expression.Name(attrPK))
	canonical, err := r.put(invitationCanonicalItem(inv), &notExists)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{canonical}

	for _, item := range []invitationItem{
		invitationInviteeIndexItem(inv),
		invitationClubIndexItem(inv),
	} {
		put, err := r.put(item, nil)
		if err != nil {
			return err
		}
		items = append(items, put)
	}
	if inv.Status() == entities.InvitationStatusPending {
		put, err := r.put(invitationPendingIndexItem(inv), nil)
		if err != nil {
			return err
		}
		items = append(items, put)
	}

	if err := r.transact(ctx, "CreateInvitation", items); err != nil {
		if isCancelled(err) {
			return ports.NewConflict(ports.ResourceInvitation, inv.ID().String(), "invitation already exists")
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	r.logger.Info("Invitation stored",
		zap.String("invitationID", inv.ID().String()),
		zap.String("clubID", inv.ClubID().String()),
		zap.String("expiresAt", inv.ExpiresAt().Format(time.RFC3339)),
	)
	return nil
}

// GetByID returns the invitation, or nil
func (r *InvitationRepository) GetByID(ctx context.Context, id valueobjects.InvitationID) (*entities.Invitation, error) {
	av, err := r.getItem(ctx, "GetInvitation", invitationKey(id))
	if err != nil || av == nil {
		return nil, err
	}
	var item invitationItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invitation: %w", err)
	}
	return item.toEntity()
}

// Update writes after over before. The write only applies while the stored status still
// matches before; the club index item moves to the new status and the pending index item is
// dropped once the invitation leaves pending.
func (r *InvitationRepository) Update(ctx context.Context, before, after *entities.Invitation) error {
	items, err := r.invitationUpdateItems(before, after)
	if err != nil {
		return err
	}

	if err := r.transact(ctx, "UpdateInvitation", items); err != nil {
		if !isCancelled(err) {
			return fmt.Errorf("failed to update invitation: %w", err)
		}
		return r.classifyStale(ctx, before)
	}

	r.logger.Debug("Invitation updated",
		zap.String("invitationID", after.ID().String()),
		zap.String("from", string(before.Status())),
		zap.String("to", string(after.Status())),
	)
	return nil
}

// Accept writes the accepted invitation together with the membership it grants. The
// membership canonical item must be absent, or still match replaced, for anything to apply.
func (r *InvitationRepository) Accept(ctx context.Context, before, after *entities.Invitation, membership, replaced *entities.Membership) error {
	items, err := r.invitationUpdateItems(before, after)
	if err != nil {
		return err
	}

	memberAt := len(items)
	cond := expression.AttributeNotExists(expression.Name(attrPK))
	if replaced != nil {
		cond = membershipUnchanged(replaced)
	}
	puts, err := r.membershipPuts(membership, &cond)
	if err != nil {
		return err
	}
	items = append(items, puts...)
	if replaced != nil && replaced.Role() != membership.Role() {
		items = append(items, r.del(clubMemberKey(replaced.ClubID(), replaced.Role(), replaced.UserID())))
	}

	if err := r.transact(ctx, "AcceptInvitation", items); err != nil {
		switch {
		case !isCancelled(err):
			return fmt.Errorf("failed to accept invitation: %w", err)
		case conditionFailedAt(err, 0):
			return r.classifyStale(ctx, before)
		case conditionFailedAt(err, memberAt):
			return ports.NewConflict(ports.ResourceMembership, membership.ClubID().String()+"#"+membership.UserID(),
				"membership changed while accepting invitation")
		default:
			return ports.NewConflict(ports.ResourceInvitation, before.ID().String(), "concurrent transaction")
		}
	}

	r.logger.Info("Invitation accepted",
		zap.String("invitationID", after.ID().String()),
		zap.String("clubID", membership.ClubID().String()),
		zap.String("userID", membership.UserID()),
		zap.String("role", string(membership.Role())),
		zap.Bool("replacedMembership", replaced != nil),
	)
	return nil
}

// invitationUpdateItems builds the guarded canonical put, always first, and the index moves
// for a before to after change
func (r *InvitationRepository) invitationUpdateItems(before, after *entities.Invitation) ([]types.TransactWriteItem, error) {
	unchanged := expression.Name("InvitationID").Equal(expression.Value(before.ID().String())).
		And(expression.Name(attrStatus).Equal(expression.Value(string(before.Status()))))

	canonical, err := r.put(invitationCanonicalItem(after), &unchanged)
	if err != nil {
		return nil, err
	}
	invitee, err := r.put(invitationInviteeIndexItem(after), nil)
	if err != nil {
		return nil, err
	}
	club, err := r.put(invitationClubIndexItem(after), nil)
	if err != nil {
		return nil, err
	}
	items := []types.TransactWriteItem{canonical, invitee, club}

	if before.Status() != after.Status() {
		items = append(items, r.del(clubInvitationKey(before.ClubID(), before.Status(), before.ID())))
	}
	if before.Status() == entities.InvitationStatusPending {
		if after.Status() == entities.InvitationStatusPending {
			pending, err := r.put(invitationPendingIndexItem(after), nil)
			if err != nil {
				return nil, err
			}
			items = append(items, pending)
		} else {
			items = append(items, r.del(pendingInvitationKey(before.ExpiresAt(), before.ID())))
		}
	}
	return items, nil
}

// classifyStale re-reads an invitation whose guarded write failed
func (r *InvitationRepository) classifyStale(ctx context.Context, before *entities.Invitation) error {
	current, err := r.GetByID(ctx, before.ID())
	if err != nil {
		return err
	}
	if current == nil {
		return ports.NewNotFound(ports.ResourceInvitation, before.ID().String())
	}
	return ports.NewConflict(ports.ResourceInvitation, before.ID().String(),
		fmt.Sprintf("invitation is %s", current.Status()))
}

// ListByInvitee pages through invitations addressed to a user id or an email
func (r *InvitationRepository) ListByInvitee(ctx context.Context, invitee ports.Invitee, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	if invitee.UserID == "" && invitee.Email == "" {
		return ports.Page[*entities.Invitation]{}, pkgerrors.NewValidationError("invitee user id or email is required")
	}
	q := pageQuery{
		op:         "ListInviteeInvitations",
		index:      indexGSI1,
		partition:  inviteePK(invitee.UserID, invitee.Email),
		sortPrefix: inviteeInvitationPrefix,
		filter:     statusFilter(string(opts.Status)),
		limit:      opts.EffectiveLimit(),
		cursor:     opts.Cursor,
	}
	return r.invitationPage(ctx, q)
}

// ListByClub pages through a club's invitations grouped by status
func (r *InvitationRepository) ListByClub(ctx context.Context, clubID valueobjects.ClubID, opts ports.InvitationListOptions) (ports.Page[*entities.Invitation], error) {
	q := pageQuery{
		op:         "ListClubInvitations",
		index:      indexGSI1,
		partition:  clubInvitationsPK(clubID),
		sortPrefix: clubInvitationStatusPrefix(opts.Status),
		limit:      opts.EffectiveLimit(),
		cursor:     opts.Cursor,
	}
	return r.invitationPage(ctx, q)
}

func (r *InvitationRepository) invitationPage(ctx context.Context, q pageQuery) (ports.Page[*entities.Invitation], error) {
	raw, next, hasMore, err := r.queryPage(ctx, q)
	if err != nil {
		return ports.Page[*entities.Invitation]{}, err
	}
	invitations, err := decodeItems(raw, invitationItem.toEntity)
	if err != nil {
		return ports.Page[*entities.Invitation]{}, err
	}
	return ports.Page[*entities.Invitation]{Items: invitations, NextCursor: next, HasMore: hasMore}, nil
}

// HasPendingInvitation reports whether the club holds a pending invitation for invitee (a
// user id or lower-cased email) that has not lapsed at now
func (r *InvitationRepository) HasPendingInvitation(ctx context.Context, clubID valueobjects.ClubID, invitee string, now time.Time) (bool, error) {
	keyCond := expression.Key(attrGSI1PK).Equal(expression.Value(clubInvitationsPK(clubID))).
		And(expression.Key(attrGSI1SK).BeginsWith(clubInvitationStatusPrefix(entities.InvitationStatusPending)))
	filter := expression.Name("Email").Equal(expression.Value(invitee)).
		Or(expression.Name("UserID").Equal(expression.Value(invitee)))

	raw, err := r.queryAll(ctx, "HasPendingInvitation", indexGSI1, keyCond, &filter)
	if err != nil {
		return false, err
	}
	invitations, err := decodeItems(raw, invitationItem.toEntity)
	if err != nil {
		return false, err
	}
	for _, inv := range invitations {
		if inv.IsPending(now) {
			return true, nil
		}
	}
	return false, nil
}

// ListExpiredPending returns up to limit pending invitations whose expiry is before now,
// oldest first
func (r *InvitationRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*entities.Invitation, error) {
	if limit <= 0 {
		limit = ports.DefaultListLimit
	}
	keyCond := expression.Key(attrGSI2PK).Equal(expression.Value(pendingInvitationPK)).
		And(expression.Key(attrGSI2SK).LessThan(expression.Value(expiresBefore(now))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var out *dynamodb.QueryOutput
	err = r.tracer.TraceFunction(ctx, "DynamoDB.Query", func(ctx context.Context) error {
		var err error
		out, err = r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table.Name),
			IndexName:                 r.indexName(indexGSI2),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			Limit:                     aws.Int32(int32(limit)),
		})
		return err
	})
	if err != nil {
		r.logger.Error("DynamoDB query failed", zap.String("operation", "ListExpiredPending"), zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("ListExpiredPending", err)
	}
	return decodeItems(out.Items, invitationItem.toEntity)
}
