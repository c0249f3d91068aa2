package dynamodb

import (
	"context"
	"fmt"

	"collective-rides/application/ports"
	"collective-rides/domain/core/entities"
	"collective-rides/domain/core/valueobjects"
	"collective-rides/pkg/observability"
	"collective-rides/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ClubRepository stores clubs as a canonical item, a name index item on GSI1 and a name
// reservation item that makes normalized names unique
type ClubRepository struct {
	store
}

// NewClubRepository creates a new ClubRepository
func NewClubRepository(client API, table Table, tracer *observability.Tracer, logger *zap.Logger) *ClubRepository {
	return &ClubRepository{store: newStore(client, table, tracer, logger)}
}

var _ ports.ClubRepository = (*ClubRepository)(nil)

// Create writes the club, its name index, its name reservation and, when given, the owner's
// membership items in one transaction
func (r *ClubRepository) Create(ctx context.Context, club *entities.Club, owner *entities.Membership) error {
	notExists := expression.AttributeNotExists(expression.Name(attrPK))

	canonical, err := r.put(clubCanonicalItem(club), &notExists)
	if err != nil {
		return err
	}
	nameIndex, err := r.put(clubNameIndexItem(club), nil)
	if err != nil {
		return err
	}
	lock, err := r.put(newClubNameLockItem(club), &notExists)
	if err != nil {
		return err
	}
	const lockPosition = 2
	items := []types.TransactWriteItem{canonical, nameIndex, lock}

	if owner != nil {
		ownerItems, err := r.membershipPuts(owner, &notExists)
		if err != nil {
			return err
		}
		items = append(items, ownerItems...)
	}

	if err := r.transact(ctx, "CreateClub", items); err != nil {
		switch {
		case conditionFailedAt(err, lockPosition):
			return ports.NewConflict(ports.ResourceClubName, club.NameKey(), "club name is reserved")
		case isCancelled(err):
			return ports.NewConflict(ports.ResourceClub, club.ID().String(), "club already exists")
		default:
			return fmt.Errorf("failed to create club: %w", err)
		}
	}

	r.logger.Info("Club stored",
		zap.String("clubID", club.ID().String()),
		zap.String("nameKey", club.NameKey()),
		zap.Int("items", len(items)),
	)
	return nil
}

// GetByID returns the club, or nil when it does not exist
func (r *ClubRepository) GetByID(ctx context.Context, id valueobjects.ClubID) (*entities.Club, error) {
	av, err := r.getItem(ctx, "GetClub", clubKey(id))
	if err != nil || av == nil {
		return nil, err
	}
	var item clubItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal club: %w", err)
	}
	return item.toEntity()
}

// FindByName looks a club up by its normalized name through the name index
func (r *ClubRepository) FindByName(ctx context.Context, name string) (*entities.Club, error) {
	nameLower := entities.NormalizeClubName(name)
	keyCond := expression.Key(attrGSI1PK).Equal(expression.Value(clubIndexPK)).
		And(expression.Key(attrGSI1SK).BeginsWith(clubNamePrefix(nameLower)))
	filter := expression.Name("NameLower").Equal(expression.Value(nameLower))

	raw, err := r.queryAll(ctx, "FindClubByName", indexGSI1, keyCond, &filter)
	if err != nil {
		return nil, err
	}
	clubs, err := decodeItems(raw, clubItem.toEntity)
	if err != nil {
		return nil, err
	}
	if len(clubs) == 0 {
		return nil, nil
	}
	return clubs[0], nil
}

// Update replaces the club and its name index. The write is conditioned on the stored club
// still matching before; a rename moves the name reservation.
func (r *ClubRepository) Update(ctx context.Context, before, after *entities.Club) error {
	unchanged := expression.Name(attrPK).AttributeExists().
		And(expression.Name("UpdatedAt").Equal(expression.Value(utils.FormatTimestamp(before.UpdatedAt())))).
		And(expression.Name(attrStatus).Equal(expression.Value(string(before.Status()))))

	canonical, err := r.put(clubCanonicalItem(after), &unchanged)
	if err != nil {
		return err
	}
	nameIndex, err := r.put(clubNameIndexItem(after), nil)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{canonical, nameIndex}

	lockPosition := -1
	if before.NameKey() != after.NameKey() {
		notExists := expression.AttributeNotExists(expression.Name(attrPK))
		lock, err := r.put(newClubNameLockItem(after), &notExists)
		if err != nil {
			return err
		}
		lockPosition = len(items)
		items = append(items,
			lock,
			r.del(clubNameLockKey(before.NameKey())),
			r.del(clubNameIndexKey(before.NameKey(), before.ID())),
		)
	}

	if err := r.transact(ctx, "UpdateClub", items); err != nil {
		if lockPosition >= 0 && conditionFailedAt(err, lockPosition) {
			return ports.NewConflict(ports.ResourceClubName, after.NameKey(), "club name is reserved")
		}
		if isCancelled(err) {
			return r.classifyMissing(ctx, before.ID())
		}
		return fmt.Errorf("failed to update club: %w", err)
	}
	return nil
}

// classifyMissing turns a failed update guard into not-found or conflict
func (r *ClubRepository) classifyMissing(ctx context.Context, id valueobjects.ClubID) error {
	current, err := r.getItem(ctx, "GetClub", clubKey(id))
	if err != nil {
		return err
	}
	if current == nil {
		return ports.NewNotFound(ports.ResourceClub, id.String())
	}
	return ports.NewConflict(ports.ResourceClub, id.String(), "club was modified concurrently")
}

// List pages through clubs ordered by normalized name
func (r *ClubRepository) List(ctx context.Context, opts ports.ClubListOptions) (ports.Page[*entities.Club], error) {
	q := pageQuery{
		op:         "ListClubs",
		index:      indexGSI1,
		partition:  clubIndexPK,
		sortPrefix: "NAME#",
		filter:     statusFilter(string(opts.Status)),
		limit:      opts.EffectiveLimit(),
		cursor:     opts.Cursor,
	}

	raw, next, hasMore, err := r.queryPage(ctx, q)
	if err != nil {
		return ports.Page[*entities.Club]{}, err
	}
	clubs, err := decodeItems(raw, clubItem.toEntity)
	if err != nil {
		return ports.Page[*entities.Club]{}, err
	}
	return ports.Page[*entities.Club]{Items: clubs, NextCursor: next, HasMore: hasMore}, nil
}
