package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo 日志实例
type LogInfo struct {
	log   *zap.Logger
	debug *debugSwitch
}

// debugSwitch 同一個 root logger 及其 With 子 logger 共用
type debugSwitch struct {
	mu sync.Mutex
	on bool
}

func (d *debugSwitch) enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

var (
	// Log 日志实例, defaults to a no-op logger until Initialize is called
	Log = NewNop()
)

// NewNop create a LogInfo that discards everything
func NewNop() *LogInfo {
	return &LogInfo{log: zap.NewNop(), debug: &debugSwitch{}}
}

// SetNewNop replace the global logger with a no-op logger (tests)
func SetNewNop() {
	Log = NewNop()
}

type options struct {
	console bool
}

// Option configure Initialize
type Option func(*options)

// WithoutConsole write every level to the log file only, for interactive
// programs whose stdout belongs to the user
func WithoutConsole() Option {
	return func(o *options) { o.console = false }
}

// Initialize 按日期分文件的日志初始化
func Initialize(serviceName, logDir string, opts ...Option) *LogInfo {
	o := options{console: true}
	for _, opt := range opts {
		opt(&o)
	}

	// 确保日志目录存在
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(fmt.Sprintf("Failed to create log directory: %v", err))
	}

	date := time.Now().Format("2006-01-02")
	file := getFileWriter(filepath.Join(logDir, fmt.Sprintf("%s_%s.log", serviceName, date)))

	// 關掉 console 時 debug 也寫檔案
	side := zapcore.AddSync(os.Stdout)
	infoSink := zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), file)
	if !o.console {
		side = file
		infoSink = file
	}

	l := &LogInfo{debug: &debugSwitch{}}

	// INFO ~ ERROR: JSON, 控制台 + 文件
	infoErrorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		infoSink,
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.InfoLevel && level <= zap.ErrorLevel
		}),
	)

	// DEBUG: 由 debugMode 控制
	debugCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		side,
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zapcore.DebugLevel && l.debug.enabled()
		}),
	)

	cores := []zapcore.Core{infoErrorCore, debugCore}
	if o.console {
		// WARN: 控制台再印一份好讀的格式
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zap.LevelEnablerFunc(func(level zapcore.Level) bool {
				return level == zapcore.WarnLevel
			}),
		))
	}

	core := zapcore.NewTee(cores...)
	l.log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).With(zap.String("service", serviceName))

	return l
}

// getFileWriter 返回日志文件的 WriteSyncer
func getFileWriter(logFile string) zapcore.WriteSyncer {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Failed to open or create log file: %v", err))
	}
	return zapcore.AddSync(file)
}

// SetDebugMode set the log debug mode, shared with every With child
func (l *LogInfo) SetDebugMode(status bool) {
	l.debug.mu.Lock()
	defer l.debug.mu.Unlock()
	l.debug.on = status
}

// DebugMode current debug mode
func (l *LogInfo) DebugMode() bool {
	return l.debug.enabled()
}

// With return a child logger carrying fields on every entry
func (l *LogInfo) With(fields ...zap.Field) *LogInfo {
	return &LogInfo{log: l.log.With(fields...), debug: l.debug}
}

// Info 输出 INFO 级别日志
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Error 输出 ERROR 级别日志
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Debug 输出 DEBUG 级别日志
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn 输出 WARN 级别日志
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Sync 刷新日志缓冲区
func (l *LogInfo) Sync() {
	if err := l.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Fatal 输出错误日志并退出程序
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	if err := l.log.Sync(); err != nil {
		os.Stderr.WriteString("Failed to sync logger: " + err.Error() + "\n")
	}
	os.Exit(1)
}
