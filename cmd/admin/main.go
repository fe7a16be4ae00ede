package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"flierbuilder/internal/auth"
	"flierbuilder/internal/config"
	"flierbuilder/internal/storage"
)

func main() {
	var (
		passcode     = flag.String("passcode", "", "编辑器口令（可选，为空时随机生成）")
		listSession  = flag.String("list-session", "", "列出指定会话上传的照片")
		purgeSession = flag.String("purge-session", "", "删除指定会话上传的全部照片")
	)
	flag.Parse()

	switch {
	case strings.TrimSpace(*listSession) != "":
		listPhotos(strings.TrimSpace(*listSession))
	case strings.TrimSpace(*purgeSession) != "":
		purgePhotos(strings.TrimSpace(*purgeSession))
	default:
		printPasscodeHash(*passcode)
	}
}

func printPasscodeHash(passcode string) {
	generated := false
	if strings.TrimSpace(passcode) == "" {
		p, err := generateRandomPasscode(18)
		if err != nil {
			log.Fatalf("generate passcode: %v", err)
		}
		passcode, generated = p, true
	}

	hashed, err := auth.HashPasscode(passcode)
	if err != nil {
		log.Fatalf("hash passcode: %v", err)
	}

	if generated {
		fmt.Printf("编辑器口令: %s\n", passcode)
	}
	fmt.Printf("EDITOR_PASSCODE_HASH=%s\n", hashed)
	fmt.Printf("提示：将哈希写入 API 服务的环境变量后重启（口令仅显示一次）。\n")
}

func storageClient() *storage.Client {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	client, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	return client
}

func listPhotos(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	objects, err := storageClient().ListObjects(ctx, storage.SessionPrefix(sessionID), 0)
	if err != nil {
		log.Fatalf("list objects: %v", err)
	}
	if len(objects) == 0 {
		fmt.Fprintf(os.Stderr, "会话 %s 没有上传的照片\n", sessionID)
		return
	}
	for _, obj := range objects {
		fmt.Printf("%s\t%d\t%s\n", obj.Key, obj.Size, obj.LastModified.Format(time.RFC3339))
	}
}

func purgePhotos(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deleted, err := storageClient().DeletePrefix(ctx, storage.SessionPrefix(sessionID))
	if err != nil {
		log.Fatalf("purge session photos (%d deleted): %v", deleted, err)
	}
	fmt.Printf("已删除会话 %s 的 %d 个对象\n", sessionID, deleted)
}

func generateRandomPasscode(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 18
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
