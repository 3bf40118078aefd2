package bridge

import "testing"

func TestWatchdog_FiresOncePerWindow(t *testing.T) {
	w := newWatchdog(0, 5_000_000)

	if _, fired := w.check(4_999_999); fired {
		t.Error("watchdog сработал до истечения окна")
	}
	elapsed, fired := w.check(5_000_000)
	if !fired {
		t.Fatal("watchdog не сработал по истечении окна")
	}
	if elapsed != 5_000_000 {
		t.Errorf("время тишины = %d, ожидали 5000000", elapsed)
	}

	// Сразу после выстрела — молчит до следующего полного окна
	if _, fired := w.check(5_000_001); fired {
		t.Error("watchdog сработал повторно внутри окна")
	}
	elapsed, fired = w.check(10_000_000)
	if !fired {
		t.Fatal("watchdog не сработал по второму окну")
	}
	if elapsed != 10_000_000 {
		t.Errorf("время тишины = %d, ожидали 10000000 (от последнего свидетельства)", elapsed)
	}
}

func TestWatchdog_EvidenceResetsWindow(t *testing.T) {
	w := newWatchdog(0, 5_000_000)

	w.observe(3_000_000)
	if _, fired := w.check(7_000_000); fired {
		t.Error("watchdog сработал, хотя от свидетельства прошло меньше окна")
	}
	elapsed, fired := w.check(8_000_000)
	if !fired {
		t.Fatal("watchdog не сработал через окно после свидетельства")
	}
	if elapsed != 5_000_000 {
		t.Errorf("время тишины = %d, ожидали 5000000", elapsed)
	}

	// Нулевое/устаревшее свидетельство ничего не сдвигает
	w.observe(0)
	w.observe(2_000_000)
	if w.lastEvidenceUS != 3_000_000 {
		t.Errorf("lastEvidence = %d, ожидали 3000000", w.lastEvidenceUS)
	}
}
