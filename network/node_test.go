package network_test

import (
	"testing"
	"time"

	"github.com/aldera-network/aldera/network"
)

// recordingDispatcher records every message handed to it by a Node's
// readLoop, so tests can assert on what actually arrived over the wire.
type recordingDispatcher struct {
	greeted chan *network.Peer
	handled chan network.Message
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		greeted: make(chan *network.Peer, 8),
		handled: make(chan network.Message, 8),
	}
}

func (d *recordingDispatcher) Greet(peer *network.Peer) { d.greeted <- peer }
func (d *recordingDispatcher) Handle(peer *network.Peer, msg network.Message) {
	d.handled <- msg
}

func startTestNode(t *testing.T, id string) (*network.Node, *recordingDispatcher) {
	t.Helper()
	node := network.NewNode(id, "127.0.0.1:0", nil)
	disp := newRecordingDispatcher()
	node.SetDispatcher(disp)
	if err := node.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(node.Stop)
	return node, disp
}

func TestNodeDialIncrementsPeerCountOnBothSides(t *testing.T) {
	listenerNode, listenerDisp := startTestNode(t, "listener")
	dialerNode, _ := startTestNode(t, "dialer")

	addr := listenerNode.ListenAddr()
	if err := dialerNode.Dial(addr); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case <-listenerDisp.greeted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never greeted the incoming connection")
	}

	if dialerNode.PeerCount() != 1 {
		t.Errorf("dialer PeerCount: got %d want 1", dialerNode.PeerCount())
	}
	deadline := time.Now().Add(2 * time.Second)
	for listenerNode.PeerCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if listenerNode.PeerCount() != 1 {
		t.Errorf("listener PeerCount: got %d want 1", listenerNode.PeerCount())
	}
}

func TestNodeBroadcastDeliversToConnectedPeer(t *testing.T) {
	listenerNode, listenerDisp := startTestNode(t, "listener")
	dialerNode, _ := startTestNode(t, "dialer")

	if err := dialerNode.Dial(listenerNode.ListenAddr()); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	<-listenerDisp.greeted

	dialerNode.Broadcast(network.Message{Type: network.MsgStatus})

	select {
	case msg := <-listenerDisp.handled:
		if msg.Type != network.MsgStatus {
			t.Errorf("got message type %q want %q", msg.Type, network.MsgStatus)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the broadcast message")
	}
}

func TestNodeStopClosesListenerAndPeers(t *testing.T) {
	node, _ := startTestNode(t, "solo")
	node.Stop()

	if err := node.Dial(node.ListenAddr()); err == nil {
		t.Error("expected Dial to fail against a stopped node's own closed listener")
	}
}
