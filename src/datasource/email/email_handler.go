// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"BiodivQuality/src/utils"
)

// ====================== 邮件处理器实现 ======================

// 调查数据附件支持的扩展名
var datasetExts = []string{".xlsx", ".csv", ".txt"}

type DatasetAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	lastFile      string          // 最近一次保存的附件路径
	mu            sync.RWMutex    // 保护内部状态的读写锁
}

func NewDatasetAttachmentHandler(subject, dataDir string) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
	}
}

// isProcessed 检查邮件是否已处理过（线程安全）
func (h *DatasetAttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *DatasetAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// LastFile 最近一次保存的附件路径，没有则为空串
func (h *DatasetAttachmentHandler) LastFile() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastFile
}

func isDatasetFile(filename string) bool {
	return utils.Contains(datasetExts, strings.ToLower(filepath.Ext(filename)))
}

// Handle 处理单个邮件：把调查数据附件落盘
func (h *DatasetAttachmentHandler) Handle(email *Email) error {
	// 检查是否已处理过该邮件
	if h.isProcessed(email.UID) {
		return nil
	}

	// 检查邮件主题是否包含目标关键词
	if !strings.Contains(email.Subject, h.TargetSubject) {
		fmt.Printf("跳过主题不匹配的邮件: %s\n", email.Subject)
		return nil
	}

	fmt.Printf("\n处理邮件: %s\n发件人: %s\n日期: %s\n",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05"))

	// 确保保存目录存在
	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %v", err)
	}

	// 处理附件
	saved := false
	for _, attachment := range email.Attachments {
		if !isDatasetFile(attachment.Filename) {
			continue
		}
		fmt.Println("找到数据附件:", attachment.Filename)

		// XLSX附件先在内存里解析一遍，损坏的不落盘
		if strings.ToLower(filepath.Ext(attachment.Filename)) == ".xlsx" {
			if _, err := LoadXLSXAttachment(attachment.Content, ""); err != nil {
				fmt.Printf("附件不可解析，跳过: %s (%v)\n", attachment.Filename, err)
				continue
			}
		}

		filePath := filepath.Join(h.DataDir, attachment.Filename)
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return fmt.Errorf("保存附件失败: %v", err)
		}

		fmt.Printf("附件已保存到: %s\n", filePath)
		h.mu.Lock()
		h.lastFile = filePath
		h.mu.Unlock()
		saved = true
	}

	// 保存成功才标记已处理，失败的下次还会重试
	if saved {
		h.markAsProcessed(email.UID)
	}

	return nil
}
