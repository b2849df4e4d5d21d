package domain

import "time"

// Direction 邮件方向。
type Direction string

const (
	DirectionInbound  Direction = "inbound"  // 外部发来的邮件
	DirectionOutbound Direction = "outbound" // 系统发出的邮件（审计记录）
)

// Priority 邮件优先级，由分类器根据重要度分档得出。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// State 邮件生命周期状态（由持久化标志位推导，不单独落库）。
type State string

const (
	StateReceived  State = "received"  // 已入库，入库流程尚未结束
	StatePending   State = "pending"   // 等待人工审批
	StateProcessed State = "processed" // 免审批，已自动处理
	StateApproved  State = "approved"  // 人工审批通过
	StateRejected  State = "rejected"  // 人工审批拒绝（同时标记删除）
	StateDeleted   State = "deleted"   // 已删除（TTL 清理或手动删除）
)

// Message 表示经过桥接层的一封邮件及其完整生命周期标志。
//
// Approved / Rejected / Processed 互斥：最多只有一个会变为 true，
// 且一旦为 true 不再回退。Replied 一旦为 true，自动回复不会再次触发。
// Importance 与 AlertClasses 在分类时写入一次，之后不可变。
type Message struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Direction Direction `json:"direction" gorm:"type:varchar(16);index;not null"`
	From      []string  `json:"from" gorm:"serializer:json;type:json"`
	To        []string  `json:"to" gorm:"serializer:json;type:json"` // 始终为地址列表，不允许裸字符串
	Subject   string    `json:"subject" gorm:"type:varchar(500)"`
	Text      string    `json:"text" gorm:"type:text"`
	HTML      string    `json:"html,omitempty" gorm:"type:text"`

	Priority     Priority `json:"priority" gorm:"type:varchar(16);index;default:low"`
	Importance   float64  `json:"importance"`
	AlertClasses []string `json:"alertClasses,omitempty" gorm:"serializer:json;type:json"`

	NeedsApproval bool `json:"needsApproval" gorm:"default:false"`
	Approved      bool `json:"approved" gorm:"default:false"`
	Rejected      bool `json:"rejected" gorm:"default:false"`
	Processed     bool `json:"processed" gorm:"default:false"`
	Deleted       bool `json:"deleted" gorm:"default:false;index"`
	Replied       bool `json:"replied" gorm:"default:false;index"`

	CreatedAt time.Time `json:"createdAt"` // TTL 计时起点，不可变

	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}

// State 根据标志位推导当前生命周期状态。
func (m *Message) State() State {
	switch {
	case m.Rejected:
		return StateRejected
	case m.Deleted:
		return StateDeleted
	case m.Approved:
		return StateApproved
	case m.Processed:
		return StateProcessed
	case m.NeedsApproval:
		return StatePending
	default:
		return StateReceived
	}
}

// Terminal 报告审批位是否已落入终态（approved / rejected / processed 任一为 true）。
func (m *Message) Terminal() bool {
	return m.Approved || m.Rejected || m.Processed
}

// Age 返回距创建时间经过的时长。
func (m *Message) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// HasAlertClass 报告邮件是否带有指定告警类别标签。
func (m *Message) HasAlertClass(class string) bool {
	for _, c := range m.AlertClasses {
		if c == class {
			return true
		}
	}
	return false
}
