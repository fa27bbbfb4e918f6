package transfer

type InstagramErrorResponse struct {
	Error InstagramError `json:"error"`
}

type InstagramError struct {
	Message        string `json:"message"`
	Type           string `json:"type"`
	Code           int    `json:"code"`
	ErrorSubcode   int    `json:"error_subcode"`
	IsTransient    bool   `json:"is_transient"`
	ErrorUserTitle string `json:"error_user_title"`
	ErrorUserMsg   string `json:"error_user_msg"`
	FbtraceID      string `json:"fbtrace_id"`
}

type InstagramID struct {
	ID string `json:"id"`
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type InstagramMedia struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}

type InstagramInsightsResponse struct {
	Data []InstagramInsight `json:"data"`
}

type InstagramInsight struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value any `json:"value"`
	} `json:"values"`
	TotalValue *InstagramTotalValue `json:"total_value"`
}

type InstagramTotalValue struct {
	Value      any                  `json:"value"`
	Breakdowns []InstagramBreakdown `json:"breakdowns"`
}

type InstagramBreakdown struct {
	DimensionKeys []string `json:"dimension_keys"`
	Results       []struct {
		DimensionValues []string `json:"dimension_values"`
		Value           float64  `json:"value"`
	} `json:"results"`
}

type InstagramRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
