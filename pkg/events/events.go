package events

// Event is a typed WordPress mutation delivered to the purge pipeline.
// The host maps its native hook firings onto these variants.
type Event interface {
	Kind() string
}

// EntitySaved fires on every save/update of a content entity.
type EntitySaved struct {
	ID int `json:"id"`
}

func (EntitySaved) Kind() string { return "entity_saved" }

// EntityStatusChanged fires on publication state transitions.
type EntityStatusChanged struct {
	ID  int    `json:"id"`
	Old string `json:"old"`
	New string `json:"new"`
}

func (EntityStatusChanged) Kind() string { return "entity_status_changed" }

// CommentStatusChanged fires when a comment moves between moderation states.
type CommentStatusChanged struct {
	CommentID int    `json:"comment_id"`
	PostID    int    `json:"post_id"`
	Old       string `json:"old"`
	New       string `json:"new"`
}

func (CommentStatusChanged) Kind() string { return "comment_status_changed" }

// CommentDeleted fires when a comment is removed.
type CommentDeleted struct {
	CommentID int `json:"comment_id"`
	PostID    int `json:"post_id"`
	// WasApproved is true when the comment was publicly visible.
	WasApproved bool `json:"was_approved"`
}

func (CommentDeleted) Kind() string { return "comment_deleted" }

// ThemeChanged fires on theme switches.
type ThemeChanged struct{}

func (ThemeChanged) Kind() string { return "theme_changed" }

// OrderStatusChanged fires on WooCommerce order transitions.
type OrderStatusChanged struct {
	OrderID        int    `json:"order_id"`
	ItemProductIDs []int  `json:"item_product_ids"`
	Old            string `json:"old"`
	New            string `json:"new"`
}

func (OrderStatusChanged) Kind() string { return "order_status_changed" }

// UpgraderCompleted fires after plugin/theme/core updates finish.
type UpgraderCompleted struct{}

func (UpgraderCompleted) Kind() string { return "upgrader_completed" }

// URLsRefreshed fires when an optimizer regenerates per-URL assets
// (WP-Rocket RUCSS style) and those URLs must be re-fetched.
type URLsRefreshed struct {
	URLs []string `json:"urls"`
}

func (URLsRefreshed) Kind() string { return "urls_refreshed" }
