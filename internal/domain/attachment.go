package domain

// Attachment 表示邮件附件的元数据。正文字节不落数据库，
// 由文件系统存储保存，StoragePath 为内容引用。
type Attachment struct {
	ID          uint64 `json:"-" gorm:"primaryKey;autoIncrement"`
	MessageID   uint64 `json:"messageId" gorm:"index;not null"`
	Index       int    `json:"index" gorm:"column:idx;not null"` // 邮件内序号，附件按序号取用
	Filename    string `json:"filename" gorm:"type:varchar(255)"`
	ContentType string `json:"contentType" gorm:"type:varchar(100)"`
	Size        int64  `json:"size"`
	StoragePath string `json:"-" gorm:"type:varchar(500)"` // 相对存储根目录的路径
	Content     []byte `json:"-" gorm:"-"`                 // 仅在入库/读取瞬间携带
}
