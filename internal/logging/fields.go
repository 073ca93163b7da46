package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供挂载点/路径/请求 ID 字段，供 HTTP 请求日志复用。
func RequestFields(mount, path, requestID string) logrus.Fields {
	return logrus.Fields{
		"mount":      mount,
		"path":       path,
		"request_id": requestID,
	}
}

// StreamFields 描述一次 pipe 调度：文件、扩展名、内容类型与响应状态。
func StreamFields(path, ext, contentType string, status int) logrus.Fields {
	return logrus.Fields{
		"action":       "pipe",
		"path":         path,
		"ext":          ext,
		"content_type": contentType,
		"status":       status,
	}
}
