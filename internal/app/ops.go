package app

import (
	"context"
	"errors"
	"fmt"

	"kanbard/internal/archive"
	"kanbard/internal/config"
	"kanbard/internal/report"
	logx "kanbard/pkg/logx"
)

// runScheduled executes one profile's archive pass from the recurrence loop.
// Only the success count is surfaced to the user; skip conditions stay in the
// log, matching how unattended runs should behave.
func (a *App) runScheduled(ctx context.Context, p config.Profile) error {
	res, err := a.engine.Archive(ctx, p)
	if err != nil {
		return err
	}
	if len(res.Moved) > 0 {
		a.notify().Info(ctx, fmt.Sprintf("[%s] 已归档 %d 个任务", p.Name, len(res.Moved)))
	}
	return nil
}

// RunArchiveNow runs the archive pass for the named profiles, or for every
// enabled profile when ids is empty. Manual runs surface skip conditions as
// error notifications; the scheduled path keeps them log-only.
func (a *App) RunArchiveNow(ctx context.Context, ids []string) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}

	var ran int
	var firstErr error
	for _, p := range cfg.Profiles {
		if len(want) > 0 && !want[p.ID] {
			continue
		}
		if !p.Enabled {
			continue
		}
		ran++
		res, err := a.engine.Archive(ctx, p)
		if err != nil {
			a.notify().Error(ctx, fmt.Sprintf("[%s] 出错: %v", p.Name, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		a.reportArchiveOutcome(ctx, p, res)
	}

	if ran == 0 {
		a.notify().Error(ctx, "未配置任何归档规则，请在设置中添加")
	}
	return firstErr
}

func (a *App) reportArchiveOutcome(ctx context.Context, p config.Profile, res archive.Result) {
	switch {
	case !res.Resolved:
		a.notify().Error(ctx, fmt.Sprintf("文档中未找到数据库视图 (Profile: %s)", p.Name))
	case res.NoStatusKey:
		a.notify().Error(ctx, fmt.Sprintf("在 %q 中未找到状态 %q -> %q", p.Name, p.CompletedStatus, p.ArchivedStatus))
	case len(res.Moved) > 0:
		a.notify().Info(ctx, fmt.Sprintf("[%s] 已归档 %d 个任务", p.Name, len(res.Moved)))
	}
}

// RunUndo reverts the most recent archive pass. An empty undo stack is a
// quiet no-op.
func (a *App) RunUndo(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	res, err := a.engine.Restore(ctx, cfg.Profiles)
	if err != nil {
		return err
	}
	if !res.Popped {
		a.log.Info("undo stack empty, nothing to restore")
		return nil
	}
	if res.Restored > 0 {
		a.notify().Info(ctx, "已尝试撤销恢复任务")
	}
	return nil
}

// RunReport synthesizes and publishes the named report template, then copies
// the rendered body to the clipboard.
func (a *App) RunReport(ctx context.Context, templateID string) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	tpl := cfg.FindTemplate(templateID)
	if tpl == nil {
		return fmt.Errorf("unknown report template %q", templateID)
	}

	doc, err := a.synth.Synthesize(ctx, *tpl, cfg)
	if err != nil {
		if errors.Is(err, report.ErrNoBoards) {
			a.log.Warn("no boards resolved, report skipped", logx.String("template", tpl.ID))
			return nil
		}
		a.notify().Error(ctx, "生成过程中遇障")
		return err
	}

	if _, err := a.writer.Write(ctx, *tpl, doc); err != nil {
		if errors.Is(err, report.ErrNoNotebook) {
			a.notify().Error(ctx, "未找到可用笔记本，请在设置中选择目标笔记本")
			return err
		}
		a.notify().Error(ctx, "生成过程中遇障")
		return err
	}
	a.notify().Info(ctx, "报表已就绪")

	plain, html := report.ClipboardPayload(*tpl, doc.Body)
	if err := a.clip.WriteClipboard(plain, html); err != nil {
		a.log.Warn("clipboard copy failed", logx.Err(err))
		return nil
	}
	a.notify().Info(ctx, "内容已复制到剪切板")
	return nil
}

// UndoDepth exposes the undo stack depth for status output.
func (a *App) UndoDepth(ctx context.Context) (int, error) {
	return a.engine.UndoDepth(ctx)
}
