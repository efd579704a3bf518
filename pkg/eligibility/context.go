package eligibility

// RequestContext is the URL-level snapshot of an inbound request, enough to
// evaluate the URL bypass rules without any content lookup.
type RequestContext struct {
	// Path is the request path, query string excluded.
	Path string
	// Query is the raw query string without the leading '?'.
	Query string
	// RequestedWith carries the X-Requested-With header value.
	RequestedWith string
	// Cron marks WP-Cron executions.
	Cron bool
}

// RequestURI rebuilds path?query the way the exclusion patterns are matched.
func (r *RequestContext) RequestURI() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// PageContext is the page-classification snapshot of a matched request,
// resolved by the WordPress side and handed over with the decision request.
// Every field defaults to the non-bypassing zero value.
type PageContext struct {
	LoggedIn       bool `json:"logged_in"`
	Admin          bool `json:"admin"`
	BypassOverride bool `json:"bypass_override"`

	EntityID          int    `json:"entity_id"`
	EntityType        string `json:"entity_type"`
	PasswordProtected bool   `json:"password_protected"`
	// BypassMeta is the per-entity opt-out stored as entity metadata.
	BypassMeta bool `json:"bypass_meta"`

	Ajax bool `json:"ajax"`

	FrontPage bool `json:"front_page"`
	Page      bool `json:"page"`
	Home      bool `json:"home"`
	Archive   bool `json:"archive"`
	Tag       bool `json:"tag"`
	Category  bool `json:"category"`
	Feed      bool `json:"feed"`
	Search    bool `json:"search"`
	Author    bool `json:"author"`
	Single    bool `json:"single"`

	WooCart        bool `json:"woo_cart"`
	WooAccount     bool `json:"woo_account"`
	WooCheckout    bool `json:"woo_checkout"`
	WooCheckoutPay bool `json:"woo_checkout_pay"`
	WooShop        bool `json:"woo_shop"`
	WooProduct     bool `json:"woo_product"`
	WooProductCat  bool `json:"woo_product_cat"`
	WooProductTag  bool `json:"woo_product_tag"`
	WooProductTax  bool `json:"woo_product_tax"`
	WooPage        bool `json:"woo_page"`

	// StatusCode of the response being decided on; redirects and 5xx pages
	// get dedicated treatment.
	StatusCode int `json:"status_code"`
}
