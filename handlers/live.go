// handlers/live.go - WebSocket live views of the directory, a challenge and its comments
package handlers

import (
	"context"
	"time"

	"fitchallenge/middleware"
	"fitchallenge/models"
	"fitchallenge/services"
	"fitchallenge/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message
	pongWait       = 60 * time.Second // Time allowed to read the next pong
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 8

	localsViewerID = "liveViewerID"
	localsFilter   = "liveDirectoryFilter"
)

// RequireUpgrade lets only WebSocket handshakes through and records the
// optional viewer for the socket handler
func RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(localsViewerID, middleware.GetUserID(c))
	return c.Next()
}

// DirectoryFilter parses the directory query parameters for DirectorySocket
func DirectoryFilter(c *fiber.Ctx) error {
	filter, ok := directoryFilter(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "difficulty must be one of easy, medium, hard")
	}
	c.Locals(localsFilter, filter)
	return c.Next()
}

// DirectorySocket pushes {type:"challenges", challenges} on connect and after
// every change to any challenge. It takes the same query parameters as
// GET /api/challenges.
// GET /ws/challenges
func DirectorySocket(conn *websocket.Conn) {
	filter, _ := conn.Locals(localsFilter).(services.ChallengeFilter)

	serveLive(conn, "", func(ctx context.Context, push func(fiber.Map)) (func(), error) {
		return challengeService.WatchDirectory(ctx, filter, func(challenges []models.Challenge) {
			push(fiber.Map{
				"type":       "challenges",
				"challenges": challenges,
				"count":      len(challenges),
			})
		})
	})
}

// CommentsSocket pushes {type:"comments", threads} on connect and after every
// change to the challenge's comments
// GET /ws/challenges/:id/comments
func CommentsSocket(conn *websocket.Conn) {
	challengeID := conn.Params("id")

	serveLive(conn, challengeID, func(ctx context.Context, push func(fiber.Map)) (func(), error) {
		return commentService.Watch(ctx, challengeID, func(threads []services.CommentThread) {
			push(fiber.Map{
				"type":        "comments",
				"challengeId": challengeID,
				"threads":     threads,
			})
		})
	})
}

// ChallengeSocket pushes {type:"challenge", challenge, joined} on connect and
// after every change to the challenge
// GET /ws/challenges/:id
func ChallengeSocket(conn *websocket.Conn) {
	challengeID := conn.Params("id")
	viewerID, _ := conn.Locals(localsViewerID).(string)

	serveLive(conn, challengeID, func(ctx context.Context, push func(fiber.Map)) (func(), error) {
		return challengeService.Watch(ctx, challengeID, viewerID, func(snap *services.ChallengeSnapshot) {
			if snap.Deleted {
				push(fiber.Map{"type": "challenge", "challengeId": challengeID, "deleted": true})
				return
			}
			push(fiber.Map{
				"type":      "challenge",
				"challenge": snap.Challenge,
				"joined":    snap.Joined,
			})
		})
	})
}

// liveClient is one open socket. Only the newest snapshots matter, so a full
// queue drops the oldest.
type liveClient struct {
	conn        *websocket.Conn
	challengeID string
	send        chan fiber.Map
	ctx         context.Context
	cancel      context.CancelFunc
}

type watchFunc func(ctx context.Context, push func(fiber.Map)) (func(), error)

func serveLive(conn *websocket.Conn, challengeID string, watch watchFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &liveClient{
		conn:        conn,
		challengeID: challengeID,
		send:        make(chan fiber.Map, sendBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	stop, err := watch(ctx, client.queue)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(fiber.Map{"type": "error", "error": services.MessageOf(err)})
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writePump()
	}()

	client.readPump()
	cancel()
	<-done
	stop()
}

func (lc *liveClient) queue(msg fiber.Map) {
	select {
	case lc.send <- msg:
		return
	default:
	}

	select {
	case <-lc.send:
	default:
	}
	select {
	case lc.send <- msg:
	default:
		utils.Logger.Warn("live view queue full, dropping snapshot", zap.String("challenge_id", lc.challengeID))
	}
}

// readPump discards client frames and returns when the socket closes
func (lc *liveClient) readPump() {
	defer lc.cancel()

	lc.conn.SetReadLimit(maxMessageSize)
	_ = lc.conn.SetReadDeadline(time.Now().Add(pongWait))
	lc.conn.SetPongHandler(func(string) error {
		return lc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := lc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				utils.Logger.Debug("live view closed", zap.String("challenge_id", lc.challengeID), zap.Error(err))
			}
			return
		}
	}
}

// writePump sends queued snapshots and keepalive pings
func (lc *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-lc.send:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteJSON(msg); err != nil {
				utils.Logger.Debug("live view write failed", zap.String("challenge_id", lc.challengeID), zap.Error(err))
				lc.close()
				return
			}

		case <-ticker.C:
			_ = lc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := lc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				lc.close()
				return
			}

		case <-lc.ctx.Done():
			_ = lc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// close unblocks readPump after a failed write
func (lc *liveClient) close() {
	lc.cancel()
	_ = lc.conn.Close()
}
