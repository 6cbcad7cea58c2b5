package huddlews

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"

	"github.com/huddle-live/huddle-go-utils/faults"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
)

// fakeDirectory is an in-memory ConnectionDirectory.
type fakeDirectory struct {
	mu    sync.Mutex
	conns map[string]connectiondao.Connection

	putFailures int           // fail this many puts before succeeding
	getDelay    time.Duration // simulate a slow store on Get
	putCalls    int
}

func newFakeDirectory(conns ...connectiondao.Connection) *fakeDirectory {
	d := &fakeDirectory{conns: map[string]connectiondao.Connection{}}
	for _, conn := range conns {
		d.conns[conn.ConnectionID] = conn
	}
	return d
}

func (d *fakeDirectory) Put(ctx context.Context, conn connectiondao.Connection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putCalls++
	if d.putFailures > 0 {
		d.putFailures--
		return faults.TransientStore("put connection", context.DeadlineExceeded)
	}
	d.conns[conn.ConnectionID] = conn
	return nil
}

func (d *fakeDirectory) Get(ctx context.Context, connectionID string) (*connectiondao.Connection, error) {
	if d.getDelay > 0 {
		select {
		case <-time.After(d.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[connectionID]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

func (d *fakeDirectory) Delete(ctx context.Context, connectionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.conns, connectionID)
	return nil
}

func (d *fakeDirectory) QueryByRoom(ctx context.Context, roomID string) ([]connectiondao.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var conns []connectiondao.Connection
	for _, conn := range d.conns {
		if conn.RoomID == roomID {
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

func (d *fakeDirectory) QueryByUser(ctx context.Context, userID string) ([]connectiondao.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var conns []connectiondao.Connection
	for _, conn := range d.conns {
		if conn.UserID == userID {
			conns = append(conns, conn)
		}
	}
	return conns, nil
}

// fakePresence records online/offline transitions.
type fakePresence struct {
	mu     sync.Mutex
	status map[string]string
}

func newFakePresence() *fakePresence {
	return &fakePresence{status: map[string]string{}}
}

func (p *fakePresence) SetOnline(ctx context.Context, userID, connectionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = "online"
	return nil
}

func (p *fakePresence) SetOffline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = "offline"
	return nil
}

func (p *fakePresence) statusOf(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[userID]
}

// fakeNotifier records broadcasts issued by the lifecycle manager.
type fakeNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *fakeNotifier) Broadcast(ctx context.Context, roomID string, event Event, excludeConnectionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count int
	for _, e := range n.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// fakeManagementAPI records PostToConnection calls and can report specific
// connections as gone or failing.
type fakeManagementAPI struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	mu      sync.Mutex
	posted  []string
	gone    map[string]bool
	failing map[string]bool
}

func newFakeManagementAPI() *fakeManagementAPI {
	return &fakeManagementAPI{
		gone:    map[string]bool{},
		failing: map[string]bool{},
	}
}

func (f *fakeManagementAPI) PostToConnectionWithContext(ctx aws.Context, input *apigatewaymanagementapi.PostToConnectionInput, opts ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	connID := aws.StringValue(input.ConnectionId)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, connID)
	if f.gone[connID] {
		return nil, &apigatewaymanagementapi.GoneException{}
	}
	if f.failing[connID] {
		return nil, awserrGeneric{}
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (f *fakeManagementAPI) postedTo(connID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int
	for _, id := range f.posted {
		if id == connID {
			count++
		}
	}
	return count
}

type awserrGeneric struct{}

func (awserrGeneric) Error() string { return "InternalServerError: delivery failed" }

func newTestBroadcaster(directory *fakeDirectory, mgmt *fakeManagementAPI) *Broadcaster {
	return &Broadcaster{
		Connections: directory,
		NewManagementClient: func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
			return mgmt
		},
	}
}
