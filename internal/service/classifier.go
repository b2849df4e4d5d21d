package service

import (
	"strings"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/domain"
)

// Classification 分类结果，写入邮件后不再变更。
type Classification struct {
	Importance   float64
	Priority     domain.Priority
	AlertClasses []string
}

// Classifier 按配置的权重和阈值对入站邮件打分。
//
// 纯计算，无 I/O，相同输入必得相同输出。
// 重要度 = 发件人信誉 + 关键词命中 + 附件加成，截断到 [0, 1]。
type Classifier struct {
	cfg config.ClassifyConfig
}

// NewClassifier 创建分类器。
func NewClassifier(cfg config.ClassifyConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify 对一封邮件计算重要度、优先级与告警类别。
func (c *Classifier) Classify(from []string, subject, text string, attachmentCount int) Classification {
	var importance float64

	if c.senderTrusted(from) {
		importance += c.cfg.SenderWeight
	}

	haystack := strings.ToLower(subject + "\n" + text)
	var classes []string
	for _, keyword := range c.cfg.AlertKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			importance += c.cfg.KeywordWeight
			classes = append(classes, keyword)
		}
	}

	if attachmentCount > 0 {
		importance += c.cfg.AttachmentWeight
	}

	if importance > 1 {
		importance = 1
	}
	if importance < 0 {
		importance = 0
	}

	return Classification{
		Importance:   importance,
		Priority:     c.priorityFor(importance),
		AlertClasses: classes,
	}
}

func (c *Classifier) priorityFor(importance float64) domain.Priority {
	switch {
	case importance >= c.cfg.HighThreshold:
		return domain.PriorityHigh
	case importance >= c.cfg.NormalThreshold:
		return domain.PriorityNormal
	default:
		return domain.PriorityLow
	}
}

func (c *Classifier) senderTrusted(from []string) bool {
	return matchSenderList(from, c.cfg.TrustedSenders)
}

// matchSenderList 判断发件人是否命中列表。
// 列表条目为完整地址，或以 "@" 开头的域名后缀。
func matchSenderList(from []string, list []string) bool {
	for _, addr := range from {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			continue
		}
		for _, entry := range list {
			if entry == "" {
				continue
			}
			if strings.HasPrefix(entry, "@") {
				if strings.HasSuffix(addr, entry) {
					return true
				}
			} else if addr == entry {
				return true
			}
		}
	}
	return false
}
