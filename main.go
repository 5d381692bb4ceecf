// 命令行入口：
// - 解析参数与 settings.yaml/rules.yaml
// - 初始化日志、HTTP 客户端、数据库
// - 准备归档根目录（已存在时交互确认），逐篇归档后导出 manifest.json
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"go-tistory-archive/internal/archive"
	"go-tistory-archive/internal/config"
	"go-tistory-archive/internal/crawl"
	"go-tistory-archive/internal/export"
	"go-tistory-archive/internal/fetch"
	"go-tistory-archive/internal/logx"
	"go-tistory-archive/internal/rules"
	"go-tistory-archive/internal/store"
)

const (
	defaultConfigPath = "settings.yaml"
	defaultRulesPath  = "rules.yaml"
)

var (
	configPath string
	rulesPath  string
	presetName string
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:           "tistory-archive <host>",
	Short:         "Archive a tistory blog as markdown files with local images.",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 参数已通过校验，之后的错误不再打印用法
		cmd.SilenceUsage = true
		return run(cmd.Context(), args[0])
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", defaultConfigPath, "path to settings.yaml (optional)")
	f.StringVar(&rulesPath, "rules", defaultRulesPath, "path to rules.yaml (optional)")
	f.StringVar(&presetName, "preset", "", "rules preset name (overrides RULES_PRESET)")
	f.BoolVarP(&assumeYes, "yes", "y", false, "delete an existing archive root without asking")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, host string) error {
	// 1) 加载配置与规则
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if presetName != "" {
		cfg.RulesPreset = presetName
	}
	logx.Init(logx.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Locale: cfg.LogLocale,
		Color:  cfg.LogColor,
		Writer: os.Stderr,
	})
	rl := loadRules(rulesPath)

	// 2) 准备归档根目录
	root := cfg.Root(host)
	confirm := promptConfirm(os.Stdin, os.Stderr)
	if assumeYes {
		confirm = func(string) (bool, error) { return true, nil }
	}
	ok, err := archive.PrepareRoot(root, confirm)
	if err != nil {
		return err
	}
	if !ok {
		logx.Infof("已取消：%s 保持不变", root)
		return nil
	}

	// 3) HTTP 会话（UA、代理、限速）
	cl := fetch.New(fetch.Options{
		UserAgent: cfg.UserAgent,
		Proxy:     cfg.ProxyURL(),
		Timeout:   cfg.Timeout(),
		Delay:     cfg.RequestDelay(),
	})

	// 4) 台账：极简模式只用内存缓冲；正常模式打开数据库并清空上次结果
	var (
		st  *store.SQLite
		rec crawl.Recorder
	)
	if !cfg.SimpleMode {
		st, err = store.OpenSQLite(cfg.DatabasePath(host))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer st.Close()
		if err := st.Reset(ctx); err != nil {
			return fmt.Errorf("reset db: %w", err)
		}
		rec = st
	}

	// 5) 抓取
	runner := crawl.New(cfg, host, cl, rl, rec)
	logx.Infof("开始归档 %s → %s（极简模式=%v）", host, root, cfg.SimpleMode)
	if err := runner.Run(ctx); err != nil {
		logx.Errorf("运行失败：%v", err)
		return err
	}

	// 6) 导出清单
	manifest := cfg.ManifestPath(host)
	if st != nil {
		err = export.ToJSON(ctx, st, host, manifest)
	} else {
		posts, failures := runner.BufferData()
		err = export.ToJSONData(ctx, host, posts, failures, manifest)
	}
	if err != nil {
		return fmt.Errorf("export manifest: %w", err)
	}
	logx.Infof("已导出 %s", manifest)
	return nil
}

// loadConfig 读取配置；默认路径下没有文件时使用默认配置。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// loadRules 读取规则文件；读取失败时使用内置规则。
func loadRules(path string) *rules.Rules {
	if path == "" {
		return nil
	}
	rl, err := rules.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logx.Warnf("加载规则失败，使用内置规则：%v", err)
		}
		return nil
	}
	return rl
}

// promptConfirm 在终端询问是否删除已存在的目录；输入结束视为拒绝。
func promptConfirm(in io.Reader, out io.Writer) archive.ConfirmFunc {
	sc := bufio.NewScanner(in)
	return func(path string) (bool, error) {
		for {
			fmt.Fprintf(out, "%s 已存在，删除后重新归档？[y/n] ", path)
			if !sc.Scan() {
				return false, sc.Err()
			}
			switch strings.ToLower(strings.TrimSpace(sc.Text())) {
			case "y", "yes":
				return true, nil
			case "n", "no":
				return false, nil
			}
		}
	}
}
