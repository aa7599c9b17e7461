// Package dailysign tracks the daily sign-in status and performs sign-ins.
package dailysign

import (
	"log"

	"ddt.game/internal/event"
	"ddt.game/internal/module"
	"ddt.game/internal/protocol"
)

const defaultFailure = "sign-in failed"

// Status is the dailySign.info and dailySign.sign payload.
type Status struct {
	SignInDays     int    `json:"signInDays"`
	SignedToday    bool   `json:"signedToday"`
	LastSignInDate string `json:"lastSignInDate"`
}

type Controller struct {
	*module.Base

	Updated event.Feed[Status]
	Signed  event.Feed[Status]
	Failed  event.Feed[string]

	status Status
	have   bool
}

func New(net module.Network, logger *log.Logger) *Controller {
	c := &Controller{Base: module.NewBase("dailysign", net, logger)}
	c.Route(protocol.CmdDailySignInfo, c.onInfo)
	c.Route(protocol.CmdDailySignSign, c.onSign)
	return c
}

// Status returns the last received status.
func (c *Controller) Status() (Status, bool) { return c.status, c.have }

func (c *Controller) RequestInfo() bool { return c.Request(protocol.CmdDailySignInfo) }

func (c *Controller) Sign() bool { return c.Request(protocol.CmdDailySignSign) }

func (c *Controller) onInfo(reqID string, code int, msg, data string) {
	err := module.Result(code, msg, data, func(s Status) {
		c.status, c.have = s, true
		c.Updated.Emit(s)
	}, c.fail)
	if err != nil {
		c.Logger().Printf("dailySign.info reqId=%s: %v", reqID, err)
	}
}

// A successful sign must carry the new status; an empty success is
// reported as a failure.
func (c *Controller) onSign(reqID string, code int, msg, data string) {
	if code == protocol.CodeOK && data == "" {
		c.fail(msg)
		return
	}
	err := module.Result(code, msg, data, func(s Status) {
		c.status, c.have = s, true
		c.Signed.Emit(s)
	}, c.fail)
	if err != nil {
		c.Logger().Printf("dailySign.sign reqId=%s: %v", reqID, err)
	}
}

func (c *Controller) fail(msg string) {
	if msg == "" {
		msg = defaultFailure
	}
	c.Failed.Emit(msg)
}
