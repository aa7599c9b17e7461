package inventory

// Item is one bag entry.
type Item struct {
	ID     int64 `json:"id"`
	ItemID int64 `json:"itemId"`
	Count  int   `json:"count"`
}

// ItemCount reports a changed stack size.
type ItemCount struct {
	ItemID int64
	Count  int
}

// Bag is the local copy of the inventory keyed by item id. Counts are never
// negative.
type Bag struct {
	items map[int64]Item
}

func NewBag() *Bag { return &Bag{items: map[int64]Item{}} }

// Reset replaces the contents with items. Later entries for the same item
// id win.
func (b *Bag) Reset(items []Item) {
	b.items = make(map[int64]Item, len(items))
	for _, it := range items {
		if it.Count < 0 {
			it.Count = 0
		}
		b.items[it.ItemID] = it
	}
}

// SetCount stores count for itemID, creating the entry when missing, and
// returns the stored value.
func (b *Bag) SetCount(itemID int64, count int) int {
	it, ok := b.items[itemID]
	if !ok {
		it = Item{ItemID: itemID}
	}
	it.Count = max(0, count)
	b.items[itemID] = it
	return it.Count
}

// TryConsume deducts count locally when enough is held. The server reply
// remains authoritative.
func (b *Bag) TryConsume(itemID int64, count int) bool {
	if count <= 0 {
		return false
	}
	it, ok := b.items[itemID]
	if !ok || it.Count < count {
		return false
	}
	it.Count -= count
	b.items[itemID] = it
	return true
}

func (b *Bag) Count(itemID int64) int { return b.items[itemID].Count }

func (b *Bag) Len() int { return len(b.items) }

// Items returns a copy of the contents.
func (b *Bag) Items() map[int64]Item {
	out := make(map[int64]Item, len(b.items))
	for k, v := range b.items {
		out[k] = v
	}
	return out
}
