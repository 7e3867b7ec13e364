package creator

import (
	"strconv"
	"strings"

	"patreonix/core/events"
	"patreonix/core/types"
	"patreonix/crypto"
)

const (
	// EventTypeInitialized is emitted once when the program state singleton is created.
	EventTypeInitialized = "registry.initialized"
	// EventTypeCreatorRegistered is emitted when an identity registers.
	EventTypeCreatorRegistered = "creator.registered"
	// EventTypeCreatorUpdated is emitted when profile fields change.
	EventTypeCreatorUpdated = "creator.updated"
	EventTypeCreatorDeactivated = "creator.deactivated"
	EventTypeCreatorReactivated = "creator.reactivated"
	// EventTypeSupportersIncremented is emitted when the supporter counter grows.
	EventTypeSupportersIncremented = "creator.supporters.incremented"
	// EventTypeCreatorSubscribed is emitted after a paid subscription.
	EventTypeCreatorSubscribed = "creator.subscribed"
	// EventTypeContentCreated is emitted when content is published.
	EventTypeContentCreated = "content.created"
	// EventTypeContentCommented is emitted when a comment is appended.
	EventTypeContentCommented = "content.commented"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
func i64(v int64) string  { return strconv.FormatInt(v, 10) }

// InitializedEvent announces the singleton.
func InitializedEvent(addr, authority crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"state":     addr.String(),
			"authority": authority.String(),
		},
	}
}

// CreatorRegisteredEvent reports a new creator record. Contact details are
// not included.
func CreatorRegisteredEvent(addr crypto.Address, c *Creator) *types.Event {
	return &types.Event{
		Type: EventTypeCreatorRegistered,
		Attributes: map[string]string{
			"creator":      addr.String(),
			"authority":    c.Authority.String(),
			"name":         c.Name,
			"registeredAt": i64(c.RegisteredAt),
		},
	}
}

// CreatorUpdatedEvent lists the names of the changed fields.
func CreatorUpdatedEvent(addr crypto.Address, c *Creator, fields []string) *types.Event {
	return &types.Event{
		Type: EventTypeCreatorUpdated,
		Attributes: map[string]string{
			"creator": addr.String(),
			"name":    c.Name,
			"fields":  strings.Join(fields, ","),
		},
	}
}

// CreatorStatusEvent reports an activation change.
func CreatorStatusEvent(addr crypto.Address, active bool) *types.Event {
	typ := EventTypeCreatorDeactivated
	if active {
		typ = EventTypeCreatorReactivated
	}
	return &types.Event{
		Type: typ,
		Attributes: map[string]string{
			"creator":  addr.String(),
			"isActive": strconv.FormatBool(active),
		},
	}
}

// SupportersIncrementedEvent carries the new supporter count.
func SupportersIncrementedEvent(addr crypto.Address, total uint64) *types.Event {
	return &types.Event{
		Type: EventTypeSupportersIncremented,
		Attributes: map[string]string{
			"creator":         addr.String(),
			"totalSupporters": u64(total),
		},
	}
}

// CreatorSubscribedEvent records a paid subscription.
func CreatorSubscribedEvent(addr, subscriber crypto.Address, amount, total uint64) *types.Event {
	return &types.Event{
		Type: EventTypeCreatorSubscribed,
		Attributes: map[string]string{
			"creator":         addr.String(),
			"subscriber":      subscriber.String(),
			"amount":          u64(amount),
			"totalSupporters": u64(total),
		},
	}
}

// ContentCreatedEvent describes a new content header.
func ContentCreatedEvent(addr crypto.Address, c *Content) *types.Event {
	return &types.Event{
		Type: EventTypeContentCreated,
		Attributes: map[string]string{
			"content":      addr.String(),
			"creator":      c.Creator.String(),
			"contentIndex": u64(c.ContentIndex),
			"title":        c.Title,
			"contentType":  c.ContentType.String(),
			"createdAt":    i64(c.CreatedAt),
		},
	}
}

// ContentCommentedEvent reports an appended comment.
func ContentCommentedEvent(addr crypto.Address, c *Content, commenter crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeContentCommented,
		Attributes: map[string]string{
			"content":   addr.String(),
			"creator":   c.Creator.String(),
			"commenter": commenter.String(),
			"comments":  strconv.Itoa(c.Comments.Len()),
		},
	}
}
