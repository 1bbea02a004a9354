// Package main provides the PEView GUI application.
package main

import (
	"fmt"
	"os"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ZacharyZcR/PEView/internal/cli"
	"github.com/ZacharyZcR/PEView/internal/pe"
)

func main() {
	myApp := app.New()
	myWindow := myApp.NewWindow("PEView - PE/COFF文件查看工具")
	myWindow.Resize(fyne.NewSize(900, 700))

	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")

	analysisOutput := widget.NewMultiLineEntry()
	analysisOutput.SetPlaceHolder("分析结果将显示在这里...")
	analysisOutput.Disable()

	statusLabel := widget.NewLabel("就绪")

	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()
			filePathEntry.SetText(file.URI().Path())
		}, myWindow)
	})

	analyzeButton := widget.NewButton("分析", func() {
		if filePathEntry.Text == "" {
			dialog.ShowError(fmt.Errorf("请先选择PE文件"), myWindow)
			return
		}

		statusLabel.SetText("正在分析...")
		go func() {
			result, err := analyzePEFile(filePathEntry.Text)
			if err != nil {
				dialog.ShowError(err, myWindow)
				statusLabel.SetText("分析失败")
				return
			}
			analysisOutput.SetText(result)
			statusLabel.SetText("分析完成")
		}()
	})

	content := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("PE文件分析", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
			container.NewBorder(nil, nil, nil, fileButton, filePathEntry),
			analyzeButton,
		),
		statusLabel,
		nil, nil,
		analysisOutput,
	)

	myWindow.SetContent(content)
	myWindow.ShowAndRun()
}

func analyzePEFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	f, err := pe.Open(data)
	if err != nil {
		return "", fmt.Errorf("解析PE文件失败: %w", err)
	}

	info := cli.Gather(f, path, int64(len(data)))
	return formatInfo(info), nil
}

func formatInfo(info *cli.Info) string {
	var sb strings.Builder

	sb.WriteString("=== 基本信息 ===\n")
	fmt.Fprintf(&sb, "文件路径: %s\n", info.FilePath)
	fmt.Fprintf(&sb, "文件大小: %d 字节\n", info.FileSize)
	fmt.Fprintf(&sb, "文件格式: %s\n", info.Format)
	if info.ImportLib {
		sb.WriteString("导入库：无节区和符号信息\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "入口点: 0x%X\n", info.EntryPoint)
	fmt.Fprintf(&sb, "镜像基址: 0x%X\n", info.ImageBase)

	fmt.Fprintf(&sb, "\n=== 节区 (%d) ===\n", len(info.Sections))
	for _, s := range info.Sections {
		fmt.Fprintf(&sb, "%-10s VA=0x%08X 大小=%d 权限=%s\n",
			s.Name, s.VirtualAddress, s.RawSize, s.Permissions)
	}

	fmt.Fprintf(&sb, "\n=== 导入 (%d 个DLL) ===\n", len(info.Imports))
	for _, imp := range info.Imports {
		fmt.Fprintf(&sb, "%s (%d 个函数)\n", imp.DLL, len(imp.Functions))
		for _, fn := range imp.Functions {
			fmt.Fprintf(&sb, "  - %s\n", fn)
		}
	}

	fmt.Fprintf(&sb, "\n=== 导出 (%d) ===\n", len(info.Exports))
	for _, e := range info.Exports {
		name := e.Name
		if name == "" {
			name = "(仅序号)"
		}
		fmt.Fprintf(&sb, "#%d 0x%08X %s\n", e.Ordinal, e.RVA, name)
	}

	if clr := info.CLR; clr != nil {
		sb.WriteString("\n=== CLR元数据 ===\n")
		fmt.Fprintf(&sb, "运行时版本: %s\n", clr.RuntimeVersion)
		if clr.MetadataErr != nil {
			fmt.Fprintf(&sb, "元数据解析失败: %v\n", clr.MetadataErr)
		} else {
			fmt.Fprintf(&sb, "元数据版本: %s\n", clr.MetadataVersion)
			fmt.Fprintf(&sb, "流: %s\n", strings.Join(clr.Streams, ", "))
			for _, t := range clr.TableRows {
				fmt.Fprintf(&sb, "  %-15s %d 行\n", t.Name, t.Rows)
			}
		}
	}

	return sb.String()
}
