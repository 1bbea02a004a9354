// Package main provides the PEView CLI tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ZacharyZcR/PEView/internal/cli"
	"github.com/ZacharyZcR/PEView/internal/pe"
	"github.com/fatih/color"
	"github.com/xyproto/env/v2"
)

var (
	verbose     = flag.Bool("v", env.Bool("PEVIEW_VERBOSE"), "详细模式：显示所有导入/导出函数")
	showSymbols = flag.Bool("symbols", env.Bool("PEVIEW_SYMBOLS"), "显示COFF符号表")
	format      = flag.Bool("format", false, "仅输出文件格式名")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	if err := analyzePE(flag.Arg(0)); err != nil {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(os.Stderr, "\n错误: %v\n\n", err)
		os.Exit(1)
	}
}

func analyzePE(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取文件失败: %w", err)
	}

	f, err := pe.Open(data)
	if err != nil {
		return fmt.Errorf("解析PE文件失败: %w", err)
	}

	if *format {
		fmt.Println(f.FileFormatName())
		return nil
	}

	info := cli.Gather(f, path, int64(len(data)))
	reporter := cli.NewReporter(info)
	reporter.SetVerbose(*verbose)
	reporter.SetShowSymbols(*showSymbols)
	reporter.Print()
	return nil
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("PEView - PE/COFF文件查看工具")
	fmt.Println("\n用法:")
	fmt.Println("  peview [选项] <PE文件>")
	fmt.Println("\n选项:")
	flag.PrintDefaults()
	fmt.Println("\n环境变量:")
	fmt.Println("  PEVIEW_VERBOSE  等同于 -v")
	fmt.Println("  PEVIEW_SYMBOLS  等同于 -symbols")
}
