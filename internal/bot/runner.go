package bot

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fpsnet/internal/config"
	"github.com/cory-johannsen/fpsnet/internal/netproxy"
	"github.com/cory-johannsen/fpsnet/internal/protocol"
)

// Report summarizes a run.
type Report struct {
	Bots            int
	Joined          int64
	JoinFailed      int64
	ConnectFailed   int64
	UpdatesSent     int64
	ShotsSent       int64
	EnemyUpdates    int64
	PlayersSeen     int64
	UpdatesReceived int64
	ShotsReceived   int64
	PlayersLeft     int64
	HostPromotions  int64
}

type counters struct {
	joined, joinFailed, connectFailed       atomic.Int64
	updatesSent, shotsSent, enemyUpdates    atomic.Int64
	playersSeen, updatesReceived, shotsRecv atomic.Int64
	playersLeft, hostPromotions             atomic.Int64
}

func (c *counters) report(bots int) Report {
	return Report{
		Bots:            bots,
		Joined:          c.joined.Load(),
		JoinFailed:      c.joinFailed.Load(),
		ConnectFailed:   c.connectFailed.Load(),
		UpdatesSent:     c.updatesSent.Load(),
		ShotsSent:       c.shotsSent.Load(),
		EnemyUpdates:    c.enemyUpdates.Load(),
		PlayersSeen:     c.playersSeen.Load(),
		UpdatesReceived: c.updatesReceived.Load(),
		ShotsReceived:   c.shotsRecv.Load(),
		PlayersLeft:     c.playersLeft.Load(),
		HostPromotions:  c.hostPromotions.Load(),
	}
}

// Runner executes scenarios.
type Runner struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	// updateInterval caps each bot's accepted playerUpdate rate, whatever
	// rate the scenario ticks at.
	updateInterval time.Duration
	// joinTimeout bounds the wait for roomJoined.
	joinTimeout time.Duration
}

// NewRunner creates a Runner whose bots use the proxy settings of cfg.
//
// Precondition: logger must be non-nil.
// Postcondition: A zero DialTimeout selects 5s; a zero UpdateInterval selects
// the proxy default.
func NewRunner(logger *zap.Logger, cfg config.ProxyConfig) *Runner {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &Runner{
		logger:         logger,
		dialTimeout:    dialTimeout,
		updateInterval: cfg.UpdateInterval,
		joinTimeout:    5 * time.Second,
	}
}

// Run starts every bot of s, lets them play until s.Duration elapses or ctx
// is cancelled, then disconnects them.
//
// Precondition: s must have passed Validate.
// Postcondition: Returns the run report. Individual bot failures are counted,
// not returned.
func (r *Runner) Run(ctx context.Context, s Scenario) Report {
	ctx, cancel := context.WithTimeout(ctx, s.Duration)
	defer cancel()

	var c counters
	var wg sync.WaitGroup
	delay := time.Duration(0)
	for _, room := range s.Rooms {
		for i := 0; i < room.Bots; i++ {
			name := fmt.Sprintf("%s-%s", room.NamePrefix, uuid.NewString()[:8])
			wg.Add(1)
			go func(roomID, name string, delay time.Duration) {
				defer wg.Done()
				r.runBot(ctx, s, roomID, name, delay, &c)
			}(room.ID, name, delay)
			delay += s.JoinStagger
		}
	}
	wg.Wait()

	rep := c.report(s.TotalBots())
	r.logger.Info("scenario finished",
		zap.Int("bots", rep.Bots),
		zap.Int64("joined", rep.Joined),
		zap.Int64("join_failed", rep.JoinFailed),
		zap.Int64("updates_sent", rep.UpdatesSent),
		zap.Int64("updates_received", rep.UpdatesReceived),
		zap.Int64("shots_sent", rep.ShotsSent),
	)
	return rep
}

func (r *Runner) runBot(ctx context.Context, s Scenario, roomID, name string, delay time.Duration, c *counters) {
	logger := r.logger.With(zap.String("bot", name), zap.String("room_id", roomID))

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	joinFailed := make(chan struct{}, 1)
	listener := netproxy.ListenerFuncs{
		PlayerJoined:  func(netproxy.NetworkPlayer) { c.playersSeen.Add(1) },
		PlayerUpdated: func(netproxy.NetworkPlayer) { c.updatesReceived.Add(1) },
		PlayerLeft:    func(netproxy.NetworkPlayer) { c.playersLeft.Add(1) },
		PlayerShot:    func(netproxy.NetworkPlayer, netproxy.Shot) { c.shotsRecv.Add(1) },
		HostStatusChanged: func(isHost bool) {
			if isHost {
				c.hostPromotions.Add(1)
			}
		},
		JoinFailed: func(_, reason string) {
			logger.Warn("join refused", zap.String("reason", reason))
			select {
			case joinFailed <- struct{}{}:
			default:
			}
		},
	}
	proxy := netproxy.New(listener, netproxy.Options{
		UpdateInterval: r.updateInterval,
		Dialer:         netproxy.WSDialer{HandshakeTimeout: r.dialTimeout, WriteTimeout: r.dialTimeout},
		Logger:         logger,
	})

	dialCtx, cancelDial := context.WithTimeout(ctx, r.dialTimeout)
	err := proxy.Connect(dialCtx, s.URL)
	cancelDial()
	if err != nil {
		c.connectFailed.Add(1)
		logger.Warn("connect failed", zap.Error(err))
		return
	}
	defer proxy.Disconnect()

	if !proxy.JoinRoom(roomID, name) || !r.awaitJoin(ctx, proxy, joinFailed) {
		c.joinFailed.Add(1)
		return
	}
	c.joined.Add(1)

	r.play(ctx, s, proxy, c)
}

func (r *Runner) awaitJoin(ctx context.Context, proxy *netproxy.Proxy, joinFailed <-chan struct{}) bool {
	deadline := time.NewTimer(r.joinTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		if proxy.IsMultiplayerActive() {
			return true
		}
		select {
		case <-poll.C:
		case <-joinFailed:
			return false
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// play walks the bot on a circle, shooting at random, and publishes the
// enemy list while it is host.
func (r *Runner) play(ctx context.Context, s Scenario, proxy *netproxy.Proxy, c *counters) {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	weapon := s.Weapons[rng.IntN(len(s.Weapons))]
	radius := 2 + rng.Float64()*8
	phase := rng.Float64() * 2 * math.Pi

	tick := time.NewTicker(time.Second / time.Duration(s.UpdateRate))
	defer tick.Stop()
	var enemyTick <-chan time.Time
	if s.Enemies > 0 {
		t := time.NewTicker(s.EnemyInterval)
		defer t.Stop()
		enemyTick = t.C
	}

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			if !proxy.IsMultiplayerActive() {
				return
			}
			angle := phase + now.Sub(start).Seconds()
			pos := protocol.Vec3{X: radius * math.Cos(angle), Y: protocol.SpawnHeight, Z: radius * math.Sin(angle)}
			rot := protocol.Rotation{Yaw: angle + math.Pi/2}
			if proxy.SendPlayerUpdate(pos, rot, weapon) {
				c.updatesSent.Add(1)
			}
			if rng.Float64() < s.ShootProbability {
				dir := protocol.Vec3{X: -math.Sin(rot.Yaw), Z: -math.Cos(rot.Yaw)}
				if proxy.SendShootEvent(pos, dir, weapon) {
					c.shotsSent.Add(1)
				}
			}
		case now := <-enemyTick:
			if !proxy.IsHost() {
				continue
			}
			if proxy.SendEnemyUpdate(simulateEnemies(s.Enemies, now.Sub(start))) {
				c.enemyUpdates.Add(1)
			}
		}
	}
}

// simulateEnemies places n enemies on a slowly rotating ring.
func simulateEnemies(n int, elapsed time.Duration) []protocol.Enemy {
	out := make([]protocol.Enemy, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i)*2*math.Pi/float64(n) + elapsed.Seconds()*0.2
		out = append(out, protocol.Enemy{
			ID:        fmt.Sprintf("enemy-%d", i),
			Position:  protocol.Vec3{X: 15 * math.Cos(angle), Z: 15 * math.Sin(angle)},
			Direction: protocol.Vec3{X: -math.Sin(angle), Z: math.Cos(angle)},
			Alive:     true,
		})
	}
	return out
}
