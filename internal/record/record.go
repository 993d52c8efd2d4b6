package record

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Node identifies a pipeline node by type and instance name.
type Node struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Message is the payload captured by a snapshot as it traverses the pipeline.
// FirstNode is always set; PreviousNode and LastNode describe the traversal
// position and may be empty.
type Message struct {
	MsgID        string `json:"_msgid"`
	Payload      any    `json:"payload"`
	Topic        string `json:"topic"`
	FirstNode    string `json:"_firstnode"`
	PreviousNode string `json:"_previousnode,omitempty"`
	LastNode     string `json:"_lastnode,omitempty"`
}

// Transaction groups the steps and snapshots of one pipeline run.
// Start and End are Unix milliseconds; End may be zero while the run is open.
type Transaction struct {
	ID       string   `json:"id"`
	Start    int64    `json:"start"`
	End      int64    `json:"end"`
	Receiver []string `json:"receiver"`
	Sender   string   `json:"sender"`
	Logs     []Log    `json:"logs"`
}

// Step records one node-to-node hop within a transaction. Transaction and
// SnapshotID are weak references and may dangle after eviction.
type Step struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	Node        Node   `json:"node"`
	Transaction string `json:"transaction"`
	CreatedAt   int64  `json:"createdAt"`
	SnapshotID  string `json:"snapshotId"`
}

// Snapshot captures the full message state at one node.
type Snapshot struct {
	ID          string  `json:"id"`
	Transaction string  `json:"transaction"`
	Node        Node    `json:"node"`
	CreatedAt   int64   `json:"createdAt"`
	Msg         Message `json:"msg"`
}

// Log is an opaque log reference.
type Log struct {
	ID string `json:"id"`
}

func (n Node) validate() error {
	if n.Type == "" {
		return errors.New("node.type is required")
	}
	if n.Name == "" {
		return errors.New("node.name is required")
	}
	return nil
}

// Validate reports whether the transaction is well-formed for insertion.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.Sender == "" {
		return errors.New("sender is required")
	}
	if t.Start <= 0 {
		return errors.New("start is required")
	}
	if t.End != 0 && t.End < t.Start {
		return fmt.Errorf("end %d precedes start %d", t.End, t.Start)
	}
	return nil
}

// Validate reports whether the step is well-formed for insertion.
func (s Step) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Topic == "" {
		return errors.New("topic is required")
	}
	if err := s.Node.validate(); err != nil {
		return err
	}
	if s.Transaction == "" {
		return errors.New("transaction is required")
	}
	if s.CreatedAt <= 0 {
		return errors.New("createdAt is required")
	}
	if s.SnapshotID == "" {
		return errors.New("snapshotId is required")
	}
	return nil
}

// Validate reports whether the snapshot is well-formed for insertion.
func (s Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Transaction == "" {
		return errors.New("transaction is required")
	}
	if err := s.Node.validate(); err != nil {
		return err
	}
	if s.CreatedAt <= 0 {
		return errors.New("createdAt is required")
	}
	if s.Msg.MsgID == "" {
		return errors.New("msg._msgid is required")
	}
	if s.Msg.Topic == "" {
		return errors.New("msg.topic is required")
	}
	if s.Msg.FirstNode == "" {
		return errors.New("msg._firstnode is required")
	}
	return nil
}

// Validate reports whether the log is well-formed for insertion.
func (l Log) Validate() error {
	if l.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// ToDoc converts a typed record into the document form the stores persist.
// Receiver/logs lists survive as empty lists, not null.
func ToDoc(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if _, ok := v.(Transaction); ok {
		if doc["receiver"] == nil {
			doc["receiver"] = []any{}
		}
		if doc["logs"] == nil {
			doc["logs"] = []any{}
		}
	}
	return doc, nil
}
