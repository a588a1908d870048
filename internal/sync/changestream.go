package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// wireChangeEvent is the on-wire shape published to a config's change
// topic; kept separate from model.ChangeEvent so the wire format doesn't
// couple to internal field names.
type wireChangeEvent struct {
	Change     string    `json:"change"`
	SourcePath string    `json:"source_path"`
	SourceID   string    `json:"source_id"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ChangeStreamConfig configures the optional kafka-go consumer used instead
// of polling when a DatasourceConfig has change_stream_enabled set.
type ChangeStreamConfig struct {
	Brokers []string
	GroupID string
}

// ChangeStreamConsumer reads change events for one config_id's topic and
// invokes handler for each, acking (committing) only on success. Grounded
// on the teacher's (now-removed) internal/tools/kafka consumer loop shape.
type ChangeStreamConsumer struct {
	reader *kafka.Reader
}

// NewChangeStreamConsumer opens a reader for the convention topic
// "changes.<config_id>".
func NewChangeStreamConsumer(cfg ChangeStreamConfig, configID string) *ChangeStreamConsumer {
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "ragcore-sync"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: groupID,
		Topic:   fmt.Sprintf("changes.%s", configID),
	})
	return &ChangeStreamConsumer{reader: reader}
}

// Run consumes until ctx is cancelled, invoking handler per change event
// and committing the message only once handler returns nil.
func (c *ChangeStreamConsumer) Run(ctx context.Context, handler func(wireChangeEvent) error) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch change message: %w", err)
		}
		var ev wireChangeEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn().Err(err).Msg("sync: dropping unparseable change message")
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}
		if err := handler(ev); err != nil {
			log.Warn().Err(err).Str("source_path", ev.SourcePath).Msg("sync: change handler failed, leaving uncommitted for redelivery")
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}
