package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueNamesIncludeProtocolVersion(t *testing.T) {
	assert.Equal(t, "probe-1-tasks-x86_64-linux", TasksQueueName("x86_64-linux"))
	assert.Equal(t, "probe-1-task-output-launch42", ReplyQueueName("launch42"))
}

func TestClientPublishTaskAndSubscribeRoundTrips(t *testing.T) {
	transport := NewInProcessTransport()
	client := &Client{Transport: transport}

	received := make(chan Task, 1)
	unsubscribe := client.SubscribeTasks("x86_64-linux", func(task Task) {
		received <- task
	}, nil)
	defer unsubscribe()

	task := Task{
		LaunchID:  "launch1",
		CrateName: "widgets",
		Snippets:  []Snippet{{ID: 1, Code: "int x;", Context: ContextGlobal}},
	}
	require.NoError(t, client.PublishTask("x86_64-linux", task))

	select {
	case got := <-received:
		assert.Equal(t, task.LaunchID, got.LaunchID)
		require.Len(t, got.Snippets, 1)
		assert.Equal(t, 1, got.Snippets[0].ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published task")
	}
}

func TestClientPublishReplyAndSubscribeRoundTrips(t *testing.T) {
	transport := NewInProcessTransport()
	client := &Client{Transport: transport}

	received := make(chan Reply, 1)
	unsubscribe := client.SubscribeReplies("launch1", func(r Reply) {
		received <- r
	}, nil)
	defer unsubscribe()

	require.NoError(t, client.PublishReply("launch1", Reply{ID: 7, Output: OutputFail, Stderr: "boom"}))

	select {
	case got := <-received:
		assert.Equal(t, 7, got.ID)
		assert.Equal(t, OutputFail, got.Output)
		assert.Equal(t, "boom", got.Stderr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published reply")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	transport := NewInProcessTransport()
	client := &Client{Transport: transport}

	count := 0
	unsubscribe := client.SubscribeTasks("t", func(Task) { count++ }, nil)
	unsubscribe()

	require.NoError(t, client.PublishTask("t", Task{LaunchID: "l"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, count, "no task should be delivered after unsubscribe")
}
