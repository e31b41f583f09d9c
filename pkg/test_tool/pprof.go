package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"marketplace_chat/pkg/config"
	"marketplace_chat/pkg/logger"

	"go.uber.org/zap"
)

// PprofAddr pprof 只在本機監聽
const PprofAddr = "127.0.0.1:6060"

// StartPprof 依設定啟動 pprof 監控伺服器, production 一律關閉
func StartPprof(enabled bool) bool {
	if !enabled {
		return false
	}
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return false
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", PprofAddr))
		if err := http.ListenAndServe(PprofAddr, nil); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
	return true
}

// 常用端點:
// 	•	/debug/pprof/goroutine → 顯示所有 Goroutines, 可用來確認聊天室 read loop 沒有洩漏
// 	•	/debug/pprof/heap → 顯示記憶體分配
// 	•	/debug/pprof/profile → 執行 30 秒 CPU 分析
//
// go tool pprof http://127.0.0.1:6060/debug/pprof/goroutine
