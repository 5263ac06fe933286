// Package queue implements the distributed Probe Checker transport (spec
// section 4.F.4 / section 6's wire protocol). No message-broker client is a
// direct dependency anywhere in the retrieval pack, so the transport is
// implemented on stdlib channels for the in-process case; DESIGN.md records
// why no broker library was pulled in for the remote case either.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ProtocolVersion is the wire protocol's "v" (spec section 6). It is part of
// both queue names, so peers on different versions use different queues;
// payloads carry no version field and no mismatch check is made.
const ProtocolVersion = 1

// Snippet is one probe unit: a source fragment plus where it is emitted
// (spec section 4.F.5).
type Snippet struct {
	ID      int    `json:"id"`
	Code    string `json:"code"`
	Context string `json:"context"`
}

const (
	ContextGlobal = "global"
	ContextMain   = "main"
)

// Task is the published unit of work: one chunk of snippets for one
// (target, launch) pair (spec section 6).
type Task struct {
	LaunchID         string    `json:"launch_id"`
	CrateName        string    `json:"crate_name"`
	CppLibraryVersion string   `json:"cpp_library_version,omitempty"`
	Snippets         []Snippet `json:"snippets"`
}

// ReplyStatus discriminates a Reply's Output variant.
type ReplyStatus string

const (
	OutputSuccess ReplyStatus = "Success"
	OutputFail    ReplyStatus = "Fail"
)

// Reply is one verdict published back to the per-launch reply queue (spec
// section 6).
type Reply struct {
	ID     int         `json:"id"`
	Output ReplyStatus `json:"output"`
	Status string      `json:"status,omitempty"`
	Stdout string      `json:"stdout,omitempty"`
	Stderr string      `json:"stderr,omitempty"`
}

// TasksQueueName and ReplyQueueName compute the named queues spec section 6
// describes: "probe-<v>-tasks-<target>" and "probe-<v>-task-output-<launch_id>".
func TasksQueueName(target string) string {
	return fmt.Sprintf("probe-%d-tasks-%s", ProtocolVersion, target)
}

func ReplyQueueName(launchID string) string {
	return fmt.Sprintf("probe-%d-task-output-%s", ProtocolVersion, launchID)
}

// Transport is the minimal publish/subscribe contract the checker needs:
// one named queue per (protocol version, target) pair for tasks, one per
// launch for replies. A real broker client (e.g. an AMQP/NATS/SQS SDK)
// would implement this directly; InProcessTransport below implements it on
// channels for the single-machine case spec section 5 describes as the
// default.
type Transport interface {
	Publish(queue string, payload []byte) error
	// Subscribe delivers every payload published to queue to handler,
	// starting from subscription time, until the returned func is called.
	Subscribe(queue string, handler func(payload []byte)) (unsubscribe func())
}

// InProcessTransport is a Transport that gives every subscriber its own
// channel (buffered to 64 payloads) and fans each Publish out to all
// subscribers of that queue name, blocking while a buffer is full.
type InProcessTransport struct {
	mu    sync.Mutex
	subs  map[string][]chan []byte
}

// NewInProcessTransport builds an empty in-process transport.
func NewInProcessTransport() *InProcessTransport {
	return &InProcessTransport{subs: map[string][]chan []byte{}}
}

func (t *InProcessTransport) Publish(queue string, payload []byte) error {
	t.mu.Lock()
	chans := append([]chan []byte{}, t.subs[queue]...)
	t.mu.Unlock()
	for _, ch := range chans {
		ch <- payload
	}
	return nil
}

func (t *InProcessTransport) Subscribe(queue string, handler func(payload []byte)) func() {
	ch := make(chan []byte, 64)
	t.mu.Lock()
	t.subs[queue] = append(t.subs[queue], ch)
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case payload := <-ch:
				handler(payload)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		t.mu.Lock()
		defer t.mu.Unlock()
		peers := t.subs[queue]
		for i, c := range peers {
			if c == ch {
				t.subs[queue] = append(peers[:i], peers[i+1:]...)
				break
			}
		}
	}
}

// Client wraps a Transport with the typed Task/Reply envelope spec section
// 6 describes. The protocol version appears only in the queue names;
// decoded payloads are not version-checked.
type Client struct {
	Transport Transport
}

// PublishTask marshals and publishes task to the tasks queue for target.
func (c *Client) PublishTask(target string, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return c.Transport.Publish(TasksQueueName(target), payload)
}

// SubscribeTasks delivers every Task published for target until
// unsubscribed. Malformed payloads are dropped and reported to onError.
// There is no acknowledgement step, and a task published twice is
// delivered twice.
func (c *Client) SubscribeTasks(target string, onTask func(Task), onError func(error)) func() {
	return c.Transport.Subscribe(TasksQueueName(target), func(payload []byte) {
		var t Task
		if err := json.Unmarshal(payload, &t); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onTask(t)
	})
}

// PublishReply marshals and publishes reply to launchID's reply queue.
func (c *Client) PublishReply(launchID string, reply Reply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return c.Transport.Publish(ReplyQueueName(launchID), payload)
}

// SubscribeReplies delivers every Reply published for launchID until
// unsubscribed.
func (c *Client) SubscribeReplies(launchID string, onReply func(Reply), onError func(error)) func() {
	return c.Transport.Subscribe(ReplyQueueName(launchID), func(payload []byte) {
		var r Reply
		if err := json.Unmarshal(payload, &r); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onReply(r)
	})
}
