package node

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/libp2p/go-libp2p/core/event"
	"go.uber.org/zap"

	"github.com/cardmesh/go-cardmesh/events"
)

const consoleBuffer = 64

// Resolver completes approval requests.
type Resolver interface {
	Pending(ctx context.Context) ([]events.Request, error)
	Resolve(ctx context.Context, id string, accept bool) error
}

// Console prints notifications, peer status changes and alerts, and asks the
// user to approve inbound connections.
type Console struct {
	in          io.Reader
	out         io.Writer
	autoApprove bool
}

type subscriptions struct {
	subs          []event.Subscription
	notifications <-chan any
	peers         <-chan any
	approvals     <-chan any
	alerts        <-chan any
}

func (s *subscriptions) Close() {
	for _, sub := range s.subs {
		sub.Close()
	}
}

func (c *Console) subscribe(reporter *events.Reporter) (*subscriptions, error) {
	rst := &subscriptions{}
	for _, sub := range []struct {
		out *<-chan any
		new func(*events.Reporter, int) (event.Subscription, error)
	}{
		{&rst.notifications, events.SubscribeBuffered[events.Notification]},
		{&rst.peers, events.SubscribeBuffered[events.PeerChanged]},
		{&rst.approvals, events.SubscribeBuffered[events.ApprovalRequested]},
		{&rst.alerts, events.SubscribeBuffered[events.Alert]},
	} {
		s, err := sub.new(reporter, consoleBuffer)
		if err != nil {
			rst.Close()
			return nil, err
		}
		rst.subs = append(rst.subs, s)
		*sub.out = s.Out()
	}
	return rst, nil
}

// Run serves the console until ctx is canceled.
func (c *Console) Run(ctx context.Context, logger *zap.Logger, reporter *events.Reporter, resolver Resolver) error {
	subs, err := c.subscribe(reporter)
	if err != nil {
		return err
	}
	defer subs.Close()
	return c.serve(ctx, logger, reporter, resolver, subs)
}

func (c *Console) serve(
	ctx context.Context,
	logger *zap.Logger,
	reporter *events.Reporter,
	resolver Resolver,
	subs *subscriptions,
) error {
	for _, alert := range reporter.Alerts() {
		fmt.Fprintf(c.out, "ALERT %s: %s\n", alert.Time, alert.Text)
	}
	var (
		queue []events.Request
		seen  = map[string]struct{}{}
	)
	request := func(req events.Request) {
		if _, exist := seen[req.ID]; exist {
			return
		}
		seen[req.ID] = struct{}{}
		if c.autoApprove {
			c.resolve(ctx, logger, resolver, req, true)
			return
		}
		queue = append(queue, req)
		if len(queue) == 1 {
			c.prompt(req)
		}
	}
	// requests made before the subscription
	pending, err := resolver.Pending(ctx)
	if err != nil {
		return nil
	}
	for _, req := range pending {
		request(req)
	}

	answers := c.answers(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-subs.notifications:
			n := ev.(events.Notification)
			fmt.Fprintf(c.out, "[%s] %s\n", n.Level, n.Text)
		case ev := <-subs.peers:
			p := ev.(events.PeerChanged)
			fmt.Fprintf(c.out, "peer %s is %s\n", p.Address.ShortString(), p.Status)
		case ev := <-subs.alerts:
			a := ev.(events.Alert)
			fmt.Fprintf(c.out, "ALERT %s: %s\n", a.Time, a.Text)
		case ev := <-subs.approvals:
			request(ev.(events.ApprovalRequested).Request)
		case answer, ok := <-answers:
			if !ok {
				answers = nil
				continue
			}
			if len(queue) == 0 {
				continue
			}
			accept, valid := parseAnswer(answer)
			if !valid {
				c.prompt(queue[0])
				continue
			}
			c.resolve(ctx, logger, resolver, queue[0], accept)
			queue = queue[1:]
			if len(queue) > 0 {
				c.prompt(queue[0])
			}
		}
	}
}

func (c *Console) answers(ctx context.Context) <-chan string {
	lines := make(chan string)
	if c.in == nil {
		return lines
	}
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func (c *Console) prompt(req events.Request) {
	name := req.Peer.DisplayName
	if name == "" {
		name = req.Peer.Address.ShortString()
	}
	switch req.Kind {
	case events.RequestSameIdentity:
		fmt.Fprintf(c.out, "%s uses your display name. Is it another device of yours? [y/n] ", name)
	default:
		fmt.Fprintf(c.out, "accept connection from %s (%s)? [y/n] ", name, req.Peer.Address.ShortString())
	}
}

func (c *Console) resolve(ctx context.Context, logger *zap.Logger, resolver Resolver, req events.Request, accept bool) {
	if err := resolver.Resolve(ctx, req.ID, accept); err != nil {
		logger.Warn("failed to resolve request", zap.Object("request", &req), zap.Error(err))
	}
}

func parseAnswer(answer string) (accept, valid bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}
