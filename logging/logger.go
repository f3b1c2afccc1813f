// Package logging provides a per-agent structured logger: one
// *log.Logger prefixed with the agent id, with one named method per
// event this core cares about instead of scattered log.Printf
// call sites.
package logging

import (
	"fmt"
	"log"
	"os"
	"time"
)

// AgentLogger emits KEY: field=value lines for one participating agent.
type AgentLogger struct {
	agentID int64
	logger  *log.Logger
}

// NewAgentLogger creates a logger prefixed with the agent's id.
func NewAgentLogger(agentID int64) *AgentLogger {
	logger := log.New(os.Stdout, fmt.Sprintf("[agent-%d] ", agentID), log.LstdFlags|log.Lmicroseconds)
	return &AgentLogger{agentID: agentID, logger: logger}
}

// RoundStarted logs entry into a new consensus round.
func (l *AgentLogger) RoundStarted(token uint64, mainAgent int64, participants int) {
	l.logger.Printf("ROUND_STARTED: token=%d main_agent=%d participants=%d started_at=%d",
		token, mainAgent, participants, time.Now().UnixMilli())
}

// RoundPublished logs a successful local-step publish to the transport.
func (l *AgentLogger) RoundPublished(token uint64, iteration int, paramCount int) {
	l.logger.Printf("ROUND_PUBLISHED: token=%d iteration=%d params=%d published_at=%d",
		token, iteration, paramCount, time.Now().UnixMilli())
}

// DualUpdated logs an ARock dual-state update for one peer/parameter pair.
func (l *AgentLogger) DualUpdated(peer int64, paramID string) {
	l.logger.Printf("DUAL_UPDATED: peer=%d param=%s updated_at=%d",
		peer, paramID, time.Now().UnixMilli())
}

// StaleMessageDropped logs a message dropped for carrying an old token.
func (l *AgentLogger) StaleMessageDropped(sender int64, token, currentToken uint64) {
	l.logger.Printf("STALE_MESSAGE_DROPPED: sender=%d token=%d current_token=%d dropped_at=%d",
		sender, token, currentToken, time.Now().UnixMilli())
}

// DuplicateMessageDropped logs a message dropped because it was already seen.
func (l *AgentLogger) DuplicateMessageDropped(sender int64, token uint64) {
	l.logger.Printf("DUPLICATE_MESSAGE_DROPPED: sender=%d token=%d dropped_at=%d",
		sender, token, time.Now().UnixMilli())
}

// InnerSolveFailed logs a failed local optimization attempt.
func (l *AgentLogger) InnerSolveFailed(token uint64, iteration int, message string) {
	l.logger.Printf("INNER_SOLVE_FAILED: token=%d iteration=%d message=%q failed_at=%d",
		token, iteration, message, time.Now().UnixMilli())
}

// ParticipantTimeout logs a participant dropped from the round for silence.
func (l *AgentLogger) ParticipantTimeout(peer int64, token uint64) {
	l.logger.Printf("PARTICIPANT_TIMEOUT: peer=%d token=%d timed_out_at=%d",
		peer, token, time.Now().UnixMilli())
}

// PeerJoined logs a membership join event.
func (l *AgentLogger) PeerJoined(peer int64) {
	l.logger.Printf("PEER_JOINED: peer=%d joined_at=%d", peer, time.Now().UnixMilli())
}

// PeerLeft logs a membership leave event.
func (l *AgentLogger) PeerLeft(peer int64) {
	l.logger.Printf("PEER_LEFT: peer=%d left_at=%d", peer, time.Now().UnixMilli())
}

// NonDistOptOut logs a round where no residual referenced a remote
// parameter, so the agent opted out of the consensus round entirely.
func (l *AgentLogger) NonDistOptOut(token uint64) {
	l.logger.Printf("NON_DIST_OPT_OUT: token=%d decided_at=%d", token, time.Now().UnixMilli())
}

// Error logs an operational error without panicking.
func (l *AgentLogger) Error(operation string, err error) {
	l.logger.Printf("ERROR: operation=%s error=%q occurred_at=%d",
		operation, err.Error(), time.Now().UnixMilli())
}
