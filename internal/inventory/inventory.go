// Package inventory mirrors the player's bag from bag.get and applies
// bag.useItem results.
package inventory

import (
	"log"

	"ddt.game/internal/event"
	"ddt.game/internal/module"
	"ddt.game/internal/protocol"
)

type bagPayload struct {
	Items []Item `json:"items"`
}

// UseItemRequest is the bag.useItem request body.
type UseItemRequest struct {
	ItemID int64 `json:"itemId"`
	Count  int   `json:"count"`
}

type useItemPayload struct {
	ItemID    int64 `json:"itemId"`
	LeftCount int   `json:"leftCount"`
}

type Controller struct {
	*module.Base

	Refreshed    event.Feed[map[int64]Item]
	CountChanged event.Feed[ItemCount]
	Failed       event.Feed[string]

	bag *Bag
}

func New(net module.Network, logger *log.Logger) *Controller {
	c := &Controller{
		Base: module.NewBase("inventory", net, logger),
		bag:  NewBag(),
	}
	c.Route(protocol.CmdBagGet, c.onBag)
	c.Route(protocol.CmdBagUseItem, c.onUseItem)
	return c
}

// Items returns a copy of the bag contents.
func (c *Controller) Items() map[int64]Item { return c.bag.Items() }

func (c *Controller) Count(itemID int64) int { return c.bag.Count(itemID) }

func (c *Controller) RequestBag() bool { return c.Request(protocol.CmdBagGet) }

// RequestUseItem asks the server to use count of itemID. Nothing is sent for
// a non-positive count.
func (c *Controller) RequestUseItem(itemID int64, count int) bool {
	if count <= 0 {
		return false
	}
	return c.RequestData(protocol.CmdBagUseItem, UseItemRequest{ItemID: itemID, Count: count})
}

// TryConsume deducts locally ahead of the server reply and reports the new
// count on success.
func (c *Controller) TryConsume(itemID int64, count int) bool {
	if !c.bag.TryConsume(itemID, count) {
		return false
	}
	c.CountChanged.Emit(ItemCount{ItemID: itemID, Count: c.bag.Count(itemID)})
	return true
}

func (c *Controller) onBag(reqID string, code int, msg, data string) {
	err := module.Result(code, msg, data, func(p bagPayload) {
		c.bag.Reset(p.Items)
		c.Refreshed.Emit(c.bag.Items())
	}, c.Failed.Emit)
	if err != nil {
		c.Logger().Printf("bag.get reqId=%s: %v", reqID, err)
	}
}

func (c *Controller) onUseItem(reqID string, code int, msg, data string) {
	err := module.Result(code, msg, data, func(p useItemPayload) {
		left := c.bag.SetCount(p.ItemID, p.LeftCount)
		c.CountChanged.Emit(ItemCount{ItemID: p.ItemID, Count: left})
	}, c.Failed.Emit)
	if err != nil {
		c.Logger().Printf("bag.useItem reqId=%s: %v", reqID, err)
	}
}
