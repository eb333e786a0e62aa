package datapush

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// 常量定义
const (
	APP            = "APP_K2MD81FE5QWXBNRC44TH"
	QUALITY_FORM   = "FORM-8A2BE1C5624B41D3B9F0C873ADD51927KQ3W"
	CLEANING_FORM  = "FORM-3F90D4A7B86E4C12A5D1E923FF407B58XC1R"
	ANALYSIS_FORM  = "FORM-52E7C9B0134A48F6BE82AA73C1B5922DQP4T"
	APP_KEY        = "ding7hk2mx9qbiodv3rt"
	APP_SECRET     = "Jw3PbNcr8VKtQz5YeM07HxAuDnSfL1gTi6oE49jC2sWvXaGyBqZkR0mUhIdO5pFl"
	USER_ID        = "0273619845220241086531"
	SYSTEM_TOKEN   = "H4K883F2NP1QX7C5BWMEJ0TZRA66YVSD92GHLM"
	TOKEN_EXPIRE   = 7200 // 2小时
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// 全局变量
var (
	accessToken    string
	tokenTimestamp int64
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Token 响应
type TokenResponse struct {
	DingTalkResponse
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// 上传图片响应
type UploadImageResponse struct {
	DingTalkResponse
	MediaId string `json:"media_id"`
}

// 表单字段映射
var formFieldMappings = map[string]map[string]string{
	"quality": {
		"数据日期时间": "dateField_m2kq7ar1",
		"数据文件":   "textField_m2kq7ar3",
		"总行数":    "numberField_m2kq7ar5",
		"重复行数":   "numberField_m2kq7ar7",
		"质量报告":   "textareaField_m2kq7ar9",
		"缺失值热力图": "textField_m2kq7arb",
	},
	"cleaning": {
		"数据日期时间": "dateField_m2krx0c1",
		"清洗前行数":  "numberField_m2krx0c3",
		"清洗后行数":  "numberField_m2krx0c5",
		"清洗报告":   "textareaField_m2krx0c7",
	},
	"analysis": {
		"数据日期时间": "dateField_m2kt5fe1",
		"记录总数":   "numberField_m2kt5fe3",
		"分析摘要":   "textareaField_m2kt5fe5",
		"分类多样性图": "textField_m2kt5fe7",
		"IUCN分布图": "textField_m2kt5fe9",
		"时间分布图":  "textField_m2kt5feb",
		"地理分布图":  "textField_m2kt5fed",
		"完整度图":   "textField_m2kt5fef",
	},
}

// 分析表单里存图片media_id的字段
var analysisImageFields = map[string]bool{
	"textField_m2kt5fe7": true,
	"textField_m2kt5fe9": true,
	"textField_m2kt5feb": true,
	"textField_m2kt5fed": true,
	"textField_m2kt5fef": true,
}

// 获取 AccessToken
func getAccessToken() (string, error) {
	now := time.Now().Unix()

	// 如果 token 未过期，直接返回
	if now-tokenTimestamp < TOKEN_EXPIRE-60 && accessToken != "" {
		return accessToken, nil
	}

	url := fmt.Sprintf("https://oapi.dingtalk.com/gettoken?appkey=%s&appsecret=%s", APP_KEY, APP_SECRET)

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("获取 token 请求失败: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取 token 响应失败: %v", err)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("解析 token 响应失败: %v", err)
	}

	if tokenResp.ErrCode != 0 {
		return "", fmt.Errorf("获取 token 错误: %s", tokenResp.ErrMsg)
	}

	accessToken = tokenResp.AccessToken
	tokenTimestamp = now
	return accessToken, nil
}

// 上传图片到钉钉
func uploadImage(imagePath string) (string, error) {
	token, err := getAccessToken()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("https://oapi.dingtalk.com/media/upload?access_token=%s&type=image", token)

	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("打开图片文件失败: %v", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("创建表单文件失败: %v", err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return "", fmt.Errorf("复制文件内容失败: %v", err)
	}

	err = writer.Close()
	if err != nil {
		return "", fmt.Errorf("关闭写入器失败: %v", err)
	}

	req, err := http.NewRequest("POST", url, body)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %v", err)
	}

	var uploadResp UploadImageResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %v", err)
	}

	if uploadResp.ErrCode != 0 {
		return "", fmt.Errorf("上传图片失败: %s", uploadResp.ErrMsg)
	}

	return uploadResp.MediaId, nil
}

// 批量保存表单数据
func batchSaveFormData(formDataList []map[string]interface{}, formUUID string) error {
	token, err := getAccessToken()
	if err != nil {
		return err
	}

	url := "https://oapi.dingtalk.com/topapi/processinstance/create"

	jsonData, err := json.Marshal(formDataList)
	if err != nil {
		return fmt.Errorf("序列化表单数据失败: %v", err)
	}

	payload := map[string]interface{}{
		"form_uuid":              formUUID,
		"app_type":               APP,
		"system_token":           SYSTEM_TOKEN,
		"user_id":                USER_ID,
		"form_data_json_list":    string(jsonData),
		"no_execute_expression":  false,
		"asynchronous_execution": true,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-acs-dingtalk-access-token", token)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if result.ErrCode != 0 {
		return fmt.Errorf("保存表单数据失败: %s", result.ErrMsg)
	}

	return nil
}

// SendDingMessage 发送钉钉文本消息
func SendDingMessage(content string, receiverIds []string) error {
	token, err := getAccessToken()
	if err != nil {
		return err
	}

	url := "https://oapi.dingtalk.com/topapi/message/corpconversation/asyncsend_v2"

	payload := map[string]interface{}{
		"agent_id":    "your_agent_id", // 替换为你的应用AgentId
		"userid_list": receiverIds,
		"msg": map[string]interface{}{
			"msgtype": "text",
			"text": map[string]string{
				"content": content,
			},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-acs-dingtalk-access-token", token)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}

	return nil
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}

// SyncQualityReport 同步质量报告到宜搭表单
func SyncQualityReport(qualityData map[string]interface{}) error {
	formData := make(map[string]interface{})

	for k, v := range qualityData {
		if field, ok := formFieldMappings["quality"][k]; ok {
			// 热力图先上传换media_id
			if field == "textField_m2kq7arb" {
				if imagePath, ok := v.(string); ok && imagePath != "" {
					mediaId, err := uploadImage(imagePath)
					if err != nil {
						log.Printf("上传图片失败: %v", err)
						continue
					}
					formData[field] = mediaId
				}
			} else {
				formData[field] = v
			}
		}
	}

	return retry(func() error {
		return batchSaveFormData([]map[string]interface{}{formData}, QUALITY_FORM)
	}, RETRY_TIMES, RETRY_INTERVAL)
}

// SyncCleaningReport 同步清洗报告到宜搭表单
func SyncCleaningReport(cleaningData map[string]interface{}) error {
	formData := make(map[string]interface{})

	for k, v := range cleaningData {
		if field, ok := formFieldMappings["cleaning"][k]; ok {
			formData[field] = v
		}
	}

	return retry(func() error {
		return batchSaveFormData([]map[string]interface{}{formData}, CLEANING_FORM)
	}, RETRY_TIMES, RETRY_INTERVAL)
}

// SyncAnalysisReport 同步分析摘要和图表到宜搭表单
func SyncAnalysisReport(analysisData map[string]interface{}) error {
	formData := make(map[string]interface{})

	for k, v := range analysisData {
		field, ok := formFieldMappings["analysis"][k]
		if !ok {
			continue
		}
		if analysisImageFields[field] {
			if imagePath, ok := v.(string); ok && imagePath != "" {
				mediaId, err := uploadImage(imagePath)
				if err != nil {
					log.Printf("上传图片失败: %v", err)
					continue
				}
				formData[field] = mediaId
			}
		} else {
			formData[field] = v
		}
	}

	return retry(func() error {
		return batchSaveFormData([]map[string]interface{}{formData}, ANALYSIS_FORM)
	}, RETRY_TIMES, RETRY_INTERVAL)
}
