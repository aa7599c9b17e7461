// Package player keeps the signed-in player's profile from player.get.
package player

import (
	"log"

	"ddt.game/internal/event"
	"ddt.game/internal/module"
	"ddt.game/internal/protocol"
)

// Profile is the player.get payload.
type Profile struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Nickname      string `json:"nickname"`
	Avatar        string `json:"avatar"`
	Level         int    `json:"level"`
	Exp           int64  `json:"exp"`
	Gold          int64  `json:"gold"`
	Diamond       int64  `json:"diamond"`
	Status        int    `json:"status"`
	LastLoginTime string `json:"lastLoginTime"`
	CreateTime    string `json:"createTime"`
	UpdateTime    string `json:"updateTime"`
}

type Controller struct {
	*module.Base

	Updated event.Feed[Profile]
	Failed  event.Feed[string]

	info Profile
	have bool
}

func New(net module.Network, logger *log.Logger) *Controller {
	c := &Controller{Base: module.NewBase("player", net, logger)}
	c.Route(protocol.CmdPlayerGet, c.onGet)
	return c
}

// Info returns the last received profile.
func (c *Controller) Info() (Profile, bool) { return c.info, c.have }

// RequestInfo asks the server for the profile.
func (c *Controller) RequestInfo() bool { return c.Request(protocol.CmdPlayerGet) }

func (c *Controller) onGet(reqID string, code int, msg, data string) {
	err := module.Result(code, msg, data, func(p Profile) {
		c.info, c.have = p, true
		c.Updated.Emit(p)
	}, c.Failed.Emit)
	if err != nil {
		c.Logger().Printf("player.get reqId=%s: %v", reqID, err)
	}
}
