package peer

// control implements the outbound half of Session on top of a raw
// JSON-event send function. Both transports embed it so the control
// message shapes live in exactly one place.
type control struct {
	send func(event map[string]any) error
}

// UpdateSession sends session.update.
func (c control) UpdateSession(config *SessionConfig) error {
	return c.send(clientEvent(EventTypeSessionUpdate, map[string]any{
		"session": config,
	}))
}

// CreateItem sends item.create. The default item type is applied to the
// wire payload only, never to the caller's value.
func (c control) CreateItem(item *Item) error {
	msg := *item
	if msg.Type == "" {
		msg.Type = "message"
	}
	return c.send(clientEvent(EventTypeItemCreate, map[string]any{
		"item": &msg,
	}))
}

// ClearInput sends input_buffer.clear.
func (c control) ClearInput() error {
	return c.send(clientEvent(EventTypeInputClear, nil))
}

// CreateResponse sends response.create.
func (c control) CreateResponse() error {
	return c.send(clientEvent(EventTypeResponseCreate, nil))
}

// CancelResponse sends response.cancel.
func (c control) CancelResponse() error {
	return c.send(clientEvent(EventTypeResponseCancel, nil))
}

// TruncateItem sends item.truncate.
func (c control) TruncateItem(itemID string, contentIndex, audioEndMs int) error {
	return c.send(clientEvent(EventTypeItemTruncate, map[string]any{
		"item_id":       itemID,
		"content_index": contentIndex,
		"audio_end_ms":  audioEndMs,
	}))
}
