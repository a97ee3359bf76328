package web

import (
	"fmt"
	"html/template"
	"sync"
)

var dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>linkpulse</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        :root {
            --bg-primary: #0a0f0a;
            --bg-card: rgba(0, 40, 0, 0.4);
            --border-color: #1a4a1a;
            --text-primary: #00ff41;
            --text-dim: #336633;
            --danger: #ff3333;
        }
        body { background: var(--bg-primary); color: var(--text-primary); font-family: monospace; padding: 1.5rem; }
        h1 { font-size: 1.4rem; margin-bottom: 0.5rem; }
        .meta { color: var(--text-dim); margin-bottom: 1rem; }
        form { margin-bottom: 1rem; }
        input { background: var(--bg-card); color: var(--text-primary); border: 1px solid var(--border-color); padding: 0.3rem; width: 28rem; }
        button { background: var(--bg-card); color: var(--text-primary); border: 1px solid var(--border-color); padding: 0.2rem 0.6rem; cursor: pointer; }
        table { border-collapse: collapse; width: 100%; background: var(--bg-card); }
        th, td { border-bottom: 1px solid var(--border-color); padding: 0.35rem 0.6rem; text-align: left; }
        td.num { text-align: right; }
        .dot { display: inline-block; width: 0.7rem; height: 0.7rem; border-radius: 50%; margin-right: 0.4rem; }
        .empty-state { color: var(--text-dim); padding: 1rem; }
    </style>
</head>
<body>
    <h1>linkpulse</h1>
    <div class="meta">
        every {{.Settings.IntervalSeconds}}s &middot; warn {{.Settings.WarnThresholdMs}}ms &middot;
        retention {{.Settings.RetentionMinutes}}m &middot; <span id="counts">{{.Snapshot.Active}} active, {{.Snapshot.Paused}} paused</span>
        {{if .Version}}&middot; {{.Version}}{{end}} &middot; <a href="/report" style="color:inherit">report</a>
    </div>
    <form id="add">
        <input id="input" placeholder="8.8.8.8, 10.0.0.1-5, 192.168.1.0/28, example.com">
        <button type="submit">add</button>
        <button type="button" id="probe">probe now</button>
    </form>
    <table>
        <thead>
            <tr><th>Status</th><th>Name</th><th>Address</th><th>Last</th><th>Avg</th><th>Min</th><th>Max</th><th>Loss</th><th>Incidents</th><th></th></tr>
        </thead>
        <tbody id="targets">
        {{range .Snapshot.Targets}}
            <tr data-id="{{.ID}}">
                <td><span class="dot" style="background:{{ansi .Color}}"></span>{{.Status}}</td>
                <td>{{.Name}}</td>
                <td>{{.Address}}</td>
                <td class="num">{{ms .LastRTT}}</td>
                <td class="num">{{ms .AvgRTT}}</td>
                <td class="num">{{ms .MinRTT}}</td>
                <td class="num">{{ms .MaxRTT}}</td>
                <td class="num">{{printf "%.1f" .PacketLoss}}%</td>
                <td class="num">{{len .Incidents}}</td>
                <td></td>
            </tr>
        {{else}}
            <tr><td colspan="10" class="empty-state">No targets yet.</td></tr>
        {{end}}
        </tbody>
    </table>
    <script>
        const ms = v => v === null || v === undefined ? '-' : v.toFixed(1) + 'ms';
        const ansi = {{ansiTable}};
        const esc = s => String(s).replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
        const api = (method, path, body) => fetch(path, {method, headers: {'Content-Type': 'application/json'}, body: body ? JSON.stringify(body) : undefined});

        function render(snap) {
            document.getElementById('counts').textContent = snap.active + ' active, ' + snap.paused + ' paused';
            const rows = snap.targets.map(t =>
                '<tr data-id="' + esc(t.id) + '">' +
                '<td><span class="dot" style="background:' + (ansi[t.color] || '#666') + '"></span>' + esc(t.status) + '</td>' +
                '<td>' + esc(t.name) + '</td><td>' + esc(t.address) + '</td>' +
                '<td class="num">' + ms(t.last_rtt_ms) + '</td><td class="num">' + ms(t.avg_rtt_ms) + '</td>' +
                '<td class="num">' + ms(t.min_rtt_ms) + '</td><td class="num">' + ms(t.max_rtt_ms) + '</td>' +
                '<td class="num">' + t.packet_loss.toFixed(1) + '%</td><td class="num">' + t.incidents.length + '</td>' +
                '<td><button data-act="toggle">' + (t.active ? 'pause' : 'resume') + '</button> ' +
                '<button data-act="trace">trace</button> <button data-act="remove">remove</button></td></tr>');
            document.getElementById('targets').innerHTML = rows.length ? rows.join('') :
                '<tr><td colspan="10" class="empty-state">No targets yet.</td></tr>';
        }

        document.getElementById('targets').addEventListener('click', e => {
            const act = e.target.dataset.act;
            const id = e.target.closest('tr').dataset.id;
            if (act === 'toggle') api('POST', '/api/targets/' + id + '/toggle');
            if (act === 'trace') api('POST', '/api/targets/' + id + '/trace');
            if (act === 'remove') api('DELETE', '/api/targets/' + id);
        });
        document.getElementById('add').addEventListener('submit', e => {
            e.preventDefault();
            const input = document.getElementById('input');
            api('POST', '/api/targets', {input: input.value}).then(() => { input.value = ''; });
        });
        document.getElementById('probe').addEventListener('click', () => api('POST', '/api/probe'));

        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = e => {
                const msg = JSON.parse(e.data);
                if (msg.type === 'snapshot') render(msg.data);
            };
            ws.onclose = () => setTimeout(connect, 2000);
        }
        connect();
    </script>
</body>
</html>`

// ansiColors approximates the ANSI 256 codes of the default palette for the
// browser.
var ansiColors = map[string]string{
	"46":  "#00ff00",
	"214": "#ffaf00",
	"196": "#ff0000",
	"241": "#626262",
}

var (
	dashboardOnce sync.Once
	dashboardTmpl *template.Template
)

func getDashboardTemplate() *template.Template {
	dashboardOnce.Do(func() {
		dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
			"ms": func(v *float64) string {
				if v == nil {
					return "-"
				}
				return fmt.Sprintf("%.1fms", *v)
			},
			"ansi": func(code string) template.CSS {
				if c, ok := ansiColors[code]; ok {
					return template.CSS(c)
				}
				return template.CSS("#666666")
			},
			"ansiTable": func() map[string]string {
				return ansiColors
			},
		}).Parse(dashboardHTML))
	})
	return dashboardTmpl
}
