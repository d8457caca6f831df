package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// EnsureFields 提供模块/目标路径/来源/命中状态字段，供 Ensure 流程日志复用。
func EnsureFields(module, path, source string, force, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"module":    module,
		"path":      path,
		"source":    source,
		"force":     force,
		"cache_hit": cacheHit,
	}
}

// LocationFields 描述 Base Location 的解析结果。
func LocationFields(dir, source string, ignoredName bool) logrus.Fields {
	return logrus.Fields{
		"action":       "resolve_base",
		"base":         dir,
		"base_source":  source,
		"ignored_name": ignoredName,
	}
}

// RequestFields 用于缓存浏览服务的访问日志。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "http_request",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
