// Persistence for channel moderation configurations.
//
// Configurations are validated on the way in, and stored in their JSON wire form, so that a stored channel always
// parses back into the same rule trees.
package channelstore

import (
	"context"
	"errors"

	"github.com/castmod/castmod/automod/rule"
)

var ErrNotFound = errors.New("channel not configured")

type Store interface {
	Get(ctx context.Context, channelID string) (*rule.Channel, error)
	// Put validates and stores the configuration, replacing any existing one for the same channel.
	Put(ctx context.Context, ch *rule.Channel) error
	// List returns the IDs of every configured channel, sorted.
	List(ctx context.Context) ([]string, error)
}
