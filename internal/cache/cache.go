// Package cache 提供按内容寻址的语音片段缓存。
// 同一段文本用同一提供商、音色和参数合成的结果可以直接复用，
// 省去重复的 API 调用和计费。
package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pljvp/myfirstpodcast/internal/audio"
	"github.com/pljvp/myfirstpodcast/internal/logger"
)

// Key 唯一标识一次合成请求的全部输入。
// 任何会影响输出音频的参数都必须参与哈希。
type Key struct {
	Provider string
	VoiceID  string
	Language string
	Model    string
	Text     string
	Tags     []string
	Speed    float64
}

// Hash 返回缓存键的十六进制摘要，用作文件名和索引主键。
func (k Key) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%.4f\x00%s\x00%s",
		k.Provider, k.VoiceID, k.Language, k.Model, k.Speed,
		strings.Join(k.Tags, ","), k.Text)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// SegmentCache 管理缓存目录和 SQLite 索引。
// 索引损坏或 IO 出错时一律按未命中处理，缓存故障不能让合成失败。
type SegmentCache struct {
	mu      sync.Mutex
	dir     string
	maxSize int64 // 字节，0 表示禁用缓存
	db      *sql.DB
}

// Open 打开或创建缓存。maxSizeMB 为 0 时禁用缓存，所有查找都未命中。
func Open(dir string, maxSizeMB int64) (*SegmentCache, error) {
	if maxSizeMB == 0 {
		return &SegmentCache{dir: dir, maxSize: 0}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("打开缓存索引失败: %w", err)
	}

	// WAL 模式，更好的并发性能
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS segments (
		key TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建缓存索引表失败: %w", err)
	}

	sc := &SegmentCache{dir: dir, maxSize: maxSizeMB * 1024 * 1024, db: db}
	sc.validate()
	return sc, nil
}

// Enabled 返回缓存是否启用。
func (sc *SegmentCache) Enabled() bool {
	return sc.maxSize > 0
}

// Lookup 查找缓存的片段音频，命中时返回样本和采样率。
func (sc *SegmentCache) Lookup(key Key) ([]float32, int, bool) {
	if !sc.Enabled() {
		return nil, 0, false
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	hash := key.Hash()
	var rate int
	err := sc.db.QueryRow("SELECT sample_rate FROM segments WHERE key = ?", hash).Scan(&rate)
	if err != nil {
		return nil, 0, false
	}

	data, err := os.ReadFile(sc.pcmPath(hash))
	if err != nil {
		// 索引有但文件丢了，清掉索引条目
		sc.db.Exec("DELETE FROM segments WHERE key = ?", hash)
		return nil, 0, false
	}

	samples := decodePCM(data)
	if len(samples) == 0 {
		return nil, 0, false
	}

	sc.db.Exec("UPDATE segments SET last_used = CURRENT_TIMESTAMP WHERE key = ?", hash)
	return samples, rate, true
}

// Store 把合成好的片段写入缓存。写入失败只记日志，不影响调用方。
func (sc *SegmentCache) Store(key Key, samples []float32, sampleRate int) {
	if !sc.Enabled() || len(samples) == 0 {
		return
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	hash := key.Hash()
	data := encodePCM(samples)

	// 先写临时文件再改名，避免读到半截文件
	tmp := sc.pcmPath(hash) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		logger.Warnf("[cache] 写缓存文件失败: %v", err)
		return
	}
	if err := os.Rename(tmp, sc.pcmPath(hash)); err != nil {
		os.Remove(tmp)
		logger.Warnf("[cache] 缓存文件改名失败: %v", err)
		return
	}

	_, err := sc.db.Exec(`INSERT INTO segments (key, provider, sample_rate, size, created_at, last_used)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET last_used = CURRENT_TIMESTAMP`,
		hash, key.Provider, sampleRate, int64(len(data)))
	if err != nil {
		logger.Warnf("[cache] 写缓存索引失败: %v", err)
		os.Remove(sc.pcmPath(hash))
		return
	}

	sc.evictLocked()
}

// Close 关闭缓存索引。
func (sc *SegmentCache) Close() error {
	if sc.db == nil {
		return nil
	}
	return sc.db.Close()
}

func (sc *SegmentCache) pcmPath(hash string) string {
	return filepath.Join(sc.dir, hash+".pcm")
}

// validate 校验索引，移除本地文件不存在的条目。
func (sc *SegmentCache) validate() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	rows, err := sc.db.Query("SELECT key FROM segments")
	if err != nil {
		return
	}
	var missing []string
	for rows.Next() {
		var key string
		if rows.Scan(&key) != nil {
			continue
		}
		if _, err := os.Stat(sc.pcmPath(key)); err != nil {
			missing = append(missing, key)
		}
	}
	rows.Close()

	for _, key := range missing {
		sc.db.Exec("DELETE FROM segments WHERE key = ?", key)
	}
	if len(missing) > 0 {
		logger.Infof("[cache] 索引校验：移除 %d 个无效条目", len(missing))
	}
}

// evictLocked 检查缓存总大小并淘汰最久未使用的（调用方需持有锁）。
func (sc *SegmentCache) evictLocked() {
	var totalSize int64
	if err := sc.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM segments").Scan(&totalSize); err != nil {
		return
	}
	if totalSize <= sc.maxSize {
		return
	}

	rows, err := sc.db.Query("SELECT key, size FROM segments ORDER BY last_used ASC")
	if err != nil {
		return
	}
	type victim struct {
		key  string
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if rows.Scan(&v.key, &v.size) == nil {
			victims = append(victims, v)
		}
	}
	rows.Close()

	start := time.Now()
	evicted := 0
	for _, v := range victims {
		if totalSize <= sc.maxSize {
			break
		}
		if err := os.Remove(sc.pcmPath(v.key)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("[cache] 删除缓存文件失败: %s: %v", v.key, err)
			continue
		}
		sc.db.Exec("DELETE FROM segments WHERE key = ?", v.key)
		totalSize -= v.size
		evicted++
	}
	if evicted > 0 {
		logger.Infof("[cache] LRU 淘汰 %d 个片段，耗时 %v", evicted, time.Since(start))
	}
}

// 缓存文件内容是 16-bit 小端 PCM，和最终 WAV 的 data 段同一种格式。

func encodePCM(samples []float32) []byte {
	return audio.Float32ToBytes(samples)
}

func decodePCM(data []byte) []float32 {
	return audio.BytesToFloat32(data)
}
