package model

import "time"

// ScheduledJob はcron式で定義された定期実行ジョブを表す。
// Session Registryと同じ揮発性ストアにハッシュとして保存される。
type ScheduledJob struct {
	TaskID         string    `json:"taskId"`
	CronExpression string    `json:"cronExpression"`
	Action         string    `json:"action"`
	CreatedAt      time.Time `json:"createdAt"`
}
