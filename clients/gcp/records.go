package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engame/services/record"
	"engame/services/session"

	"cloud.google.com/go/firestore"
	"github.com/fatih/structs"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const avatarCollection = "avatar"

type recordStore struct {
	db  *firestore.Client
	now func() time.Time
}

var _ record.Store = (*recordStore)(nil)

// NewRecordStore keeps one document per identity in the avatar collection,
// keyed by the identity.
func NewRecordStore(db *firestore.Client) record.Store {
	return &recordStore{db: db, now: time.Now}
}

func (r *recordStore) Get(ctx context.Context, s *session.Session) (*record.Avatar, error) {
	if s == nil {
		return nil, session.ErrNoSession
	}
	filter := firestore.PropertyFilter{
		Path:     "id",
		Operator: "==",
		Value:    string(s.Identity),
	}
	iter := r.db.Collection(avatarCollection).WhereEntity(filter).Limit(1).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query avatar record: %w", err)
		}
		avatar := record.Avatar{}
		if err := doc.DataTo(&avatar); err != nil {
			return nil, fmt.Errorf("failed to decode avatar record %s: %w", doc.Ref.ID, err)
		}
		return &avatar, nil
	}
	return nil, record.ErrNotFound
}

func (r *recordStore) Insert(ctx context.Context, s *session.Session, reference string) error {
	if s == nil {
		return session.ErrNoSession
	}
	avatar := record.Avatar{
		ID:        string(s.Identity),
		URL:       reference,
		CreatedAt: r.now().UTC(),
	}
	_, err := r.db.Collection(avatarCollection).Doc(string(s.Identity)).Create(ctx, structs.Map(avatar))
	if status.Code(err) == codes.AlreadyExists {
		return record.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert avatar record: %w", err)
	}
	log.Debug().Str("identity", string(s.Identity)).Msg("stored avatar record")
	return nil
}
