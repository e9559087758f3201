package credits

type GrantRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"max=255"`
}

type StatementQuery struct {
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}
