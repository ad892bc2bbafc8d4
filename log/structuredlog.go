package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// StructuredLog is one line of the event stream: a typed record with a JSON payload.
type StructuredLog struct {
	Time     time.Time       `json:"time"`
	Sender   string          `json:"sender_id"`
	MsgType  string          `json:"msg_type"`
	MsgJSON  json.RawMessage `json:"json_encoded"`
	Metadata *string         `json:"metadata,omitempty"`
	Elapsed  uint32          `json:"elapsed,omitempty"`
}

var fieldOrder = []string{"time", "sender_id", "msg_type", "json_encoded", "metadata", "elapsed"}

// Custom JSON marshaling to preserve field order and omit zero/empty values.
func (l StructuredLog) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeField := func(key string, val []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, `"%s":`, key)
		buf.Write(val)
	}
	for _, f := range fieldOrder {
		switch f {
		case "time":
			b, _ := json.Marshal(l.Time)
			writeField(f, b)
		case "sender_id":
			b, _ := json.Marshal(l.Sender)
			writeField(f, b)
		case "msg_type":
			b, _ := json.Marshal(l.MsgType)
			writeField(f, b)
		case "json_encoded":
			msg := l.MsgJSON
			if len(msg) == 0 {
				msg = json.RawMessage("null")
			}
			writeField(f, msg)
		case "metadata":
			if l.Metadata != nil {
				b, _ := json.Marshal(*l.Metadata)
				writeField(f, b)
			}
		case "elapsed":
			if l.Elapsed != 0 {
				b, _ := json.Marshal(l.Elapsed)
				writeField(f, b)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var (
	eventMu     sync.Mutex
	eventWriter io.Writer
)

// SetEventWriter directs Event records to w, one JSON object per line. A nil
// writer turns the stream off.
func SetEventWriter(w io.Writer) {
	eventMu.Lock()
	defer eventMu.Unlock()
	eventWriter = w
}

// Event emits a structured record of type msgType on the event stream.
func Event(msgType string, senderID string, msg interface{}, elapsed time.Duration) {
	eventMu.Lock()
	defer eventMu.Unlock()
	if eventWriter == nil {
		return
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		Error(MinerMonitoring, "Event: failed to marshal msg", "type", msgType, "err", err)
		return
	}
	rec := StructuredLog{
		Time:    time.Now().UTC(),
		Sender:  senderID,
		MsgType: msgType,
		MsgJSON: msgJSON,
		Elapsed: uint32(elapsed.Microseconds()),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		Error(MinerMonitoring, "Event: failed to marshal record", "type", msgType, "err", err)
		return
	}
	line = append(line, '\n')
	if _, err := eventWriter.Write(line); err != nil {
		Error(MinerMonitoring, "Event: write failed", "type", msgType, "err", err)
	}
}
