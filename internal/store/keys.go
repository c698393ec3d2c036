package store

// Key schema for the Pebble store. Index keys end in "\x00<id>" so a prefix
// scan over one secondary key never bleeds into a longer key sharing it.
//
//   ask:<id>                    → AskOrder JSON
//   ask_owner:<owner>\x00<id>   → id
//   ask_type:<type>\x00<id>     → id
//   ask_cid:<collateral>\x00<id> → id
//   bid:<id>                    → BidOrder JSON
//   bid_owner:<owner>\x00<id>   → id
//   bid_type:<type>\x00<id>     → id
//   settings                    → Settings JSON

const (
	prefixAsk      = "ask:"
	prefixAskOwner = "ask_owner:"
	prefixAskType  = "ask_type:"
	prefixAskCID   = "ask_cid:"
	prefixBid      = "bid:"
	prefixBidOwner = "bid_owner:"
	prefixBidType  = "bid_type:"
	keySettings    = "settings"
)

const indexSep = "\x00"

func askKey(id string) []byte { return []byte(prefixAsk + id) }
func bidKey(id string) []byte { return []byte(prefixBid + id) }

// indexKey returns "<prefix><key>\x00<id>".
func indexKey(prefix, key, id string) []byte {
	return []byte(prefix + key + indexSep + id)
}

// indexPrefix returns the scan prefix for every id stored under key.
func indexPrefix(prefix, key string) []byte {
	return []byte(prefix + key + indexSep)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
