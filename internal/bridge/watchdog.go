package bridge

// watchdog следит за отсутствием свежих sync-свидетельств.
// Чисто наблюдательный: не трогает offset и не останавливает цикл.
// Срабатывает не чаще одного раза за полное окно тишины: после выстрела
// точка отсчёта проверки сдвигается на текущий момент.
type watchdog struct {
	intervalUS     int64
	lastCheckUS    int64
	lastEvidenceUS int64
}

func newWatchdog(startUS, intervalUS int64) *watchdog {
	return &watchdog{
		intervalUS:     intervalUS,
		lastCheckUS:    startUS,
		lastEvidenceUS: startUS,
	}
}

// observe учитывает свежее свидетельство: оно сдвигает и точку отсчёта
// проверки, чтобы окно тишины мерилось от последнего свидетельства.
func (w *watchdog) observe(evidenceUS int64) {
	if evidenceUS > w.lastEvidenceUS {
		w.lastEvidenceUS = evidenceUS
		w.lastCheckUS = evidenceUS
	}
}

// check возвращает (время тишины в мкс, true), если окно тишины истекло.
func (w *watchdog) check(nowUS int64) (int64, bool) {
	if nowUS-w.lastCheckUS < w.intervalUS {
		return 0, false
	}
	w.lastCheckUS = nowUS
	return nowUS - w.lastEvidenceUS, true
}
