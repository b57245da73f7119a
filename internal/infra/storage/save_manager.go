package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MRamiBalles/medsim/internal/engine"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
)

// SchemaVersion is bumped whenever SaveBlob changes incompatibly. Blobs with
// another version are ignored.
const SchemaVersion = 1

// SaveBlob is the persisted progress document.
type SaveBlob struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Profile       engine.Profile      `json:"profile"`
	Run           engine.RunAggregate `json:"run"`
	SavedAt       time.Time           `json:"savedAt"`
}

// SaveManager adapts a SaveStore to the engine. Every failure is logged and
// reported to the engine as "no save".
type SaveManager struct {
	store   SaveStore
	key     string
	logger  *logger.Logger
	metrics *metrics.Collector
	timeout time.Duration
	now     func() time.Time
}

func NewSaveManager(store SaveStore, log *logger.Logger, m *metrics.Collector) *SaveManager {
	return &SaveManager{
		store:   store,
		key:     SaveKey,
		logger:  log,
		metrics: m,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// Read fetches and decodes the stored blob. Missing data returns ErrNotFound;
// undecodable or foreign-schema data returns a CORRUPT_SAVE error.
func (sm *SaveManager) Read(ctx context.Context) (SaveBlob, error) {
	raw, err := sm.store.Load(ctx, sm.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SaveBlob{}, err
		}
		return SaveBlob{}, domainerrors.Wrap(domainerrors.CodeStoreUnavailable, "load save", err)
	}
	if len(raw) == 0 {
		return SaveBlob{}, ErrNotFound
	}

	var blob SaveBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return SaveBlob{}, domainerrors.Wrap(domainerrors.CodeCorruptSave, "decode save", err)
	}
	if blob.SchemaVersion != SchemaVersion {
		return SaveBlob{}, domainerrors.WithMetadata(domainerrors.CodeCorruptSave, "save schema mismatch",
			map[string]string{"key": sm.key})
	}
	return blob, nil
}

// Load implements engine.Saver.
func (sm *SaveManager) Load() (engine.SaveData, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	blob, err := sm.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			sm.logger.Warn("save ignored", "key", sm.key, "error", err)
		}
		return engine.SaveData{}, false
	}
	return engine.SaveData{Profile: blob.Profile, Run: blob.Run}, true
}

// Save implements engine.Saver.
func (sm *SaveManager) Save(d engine.SaveData) {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	started := time.Now()
	raw, err := json.Marshal(SaveBlob{
		SchemaVersion: SchemaVersion,
		Profile:       d.Profile,
		Run:           d.Run,
		SavedAt:       sm.now().UTC(),
	})
	if err == nil {
		err = sm.store.Save(ctx, sm.key, raw)
	}
	sm.metrics.RecordSave(time.Since(started), err)
	if err != nil {
		sm.logger.Error("save failed", "key", sm.key, "error", err)
	}
}

// Clear implements engine.Saver.
func (sm *SaveManager) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if err := sm.store.Clear(ctx, sm.key); err != nil {
		sm.logger.Error("clear save failed", "key", sm.key, "error", err)
	}
}

var _ engine.Saver = (*SaveManager)(nil)
