package web

import "net/http"

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

const page = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>PA Alarm</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 40px auto; padding: 20px; }
        h1 { color: #333; }
        .info { background: #f0f0f0; padding: 15px; border-radius: 5px; margin: 20px 0; }
        .countdown { font-size: 2.5em; font-variant-numeric: tabular-nums; }
        .warn { color: #b00; }
        button { background: #007bff; color: white; border: none; padding: 8px 16px; border-radius: 5px; cursor: pointer; margin: 2px; }
        button:hover { background: #0056b3; }
        button.off { background: #999; }
        table { width: 100%; border-collapse: collapse; }
        td { padding: 6px; border-bottom: 1px solid #ddd; }
        input, select { padding: 6px; margin: 4px; }
    </style>
</head>
<body>
    <h1>PA Alarm</h1>
    <div class="info">
        <div class="countdown" id="countdown">--</div>
        <div id="next"></div>
        <div id="state"></div>
        <div class="warn" id="notice"></div>
    </div>
    <div>
        <button id="arm" onclick="post('/api/arm')">Arm</button>
        <button onclick="post('/api/disarm')">Disarm</button>
        <select id="sound"></select>
        <button onclick="play()">Play</button>
        <button onclick="post('/api/stop')">Stop</button>
        <label>Volume <input type="range" id="volume" min="0" max="1" step="0.05" onchange="setVolume(this.value)"></label>
    </div>
    <h2>Schedules</h2>
    <div id="stats"></div>
    <table id="schedules"></table>
    <div style="margin-top: 12px;">
        <button onclick="post('/api/schedules')">Add</button>
        <a href="/api/export"><button>Export</button></a>
        <input type="file" id="importFile" accept="application/json" onchange="importFile(this.files[0])">
    </div>
    <script>
        const dayNames = ['Sun', 'Mon', 'Tue', 'Wed', 'Thu', 'Fri', 'Sat'];

        async function request(method, url, body) {
            const res = await fetch(url, {
                method: method,
                headers: {'Content-Type': 'application/json'},
                body: body === undefined ? undefined : JSON.stringify(body)
            });
            if (!res.ok) {
                const err = await res.json().catch(() => ({error: res.statusText}));
                document.getElementById('notice').textContent = err.error;
            }
            await loadStatus();
        }
        function post(url, body) { return request('POST', url, body); }

        function play() {
            post('/api/play', {soundId: document.getElementById('sound').value, loops: 1});
        }
        function setVolume(v) { request('PUT', '/api/volume', {volume: parseFloat(v)}); }

        async function importFile(file) {
            if (!file) return;
            const res = await fetch('/api/import', {method: 'POST', body: await file.text()});
            const data = await res.json();
            document.getElementById('notice').textContent = res.ok
                ? 'Imported ' + data.imported + ' schedule(s), ' + data.discarded + ' discarded'
                : data.error;
            await loadStatus();
        }

        function renderNext(next) {
            document.getElementById('countdown').textContent = next ? next.countdown : '--';
            document.getElementById('next').textContent = next
                ? 'Next: ' + next.time + ' (' + next.soundId + ') ' + next.relative
                : 'No enabled schedule';
        }

        function renderSchedules(list) {
            const table = document.getElementById('schedules');
            table.innerHTML = '';
            for (const s of list) {
                const row = table.insertRow();
                row.insertCell().innerHTML = '<input type="time" value="' + s.time + '" onchange="patch(\'' + s.id + '\', {time: this.value})">';
                row.insertCell().textContent = s.soundId + ' x' + s.loopCount;
                const days = row.insertCell();
                dayNames.forEach((name, i) => {
                    const b = document.createElement('button');
                    b.textContent = name;
                    if (!s.days.includes(i)) b.className = 'off';
                    b.onclick = () => post('/api/schedules/' + s.id + '/days/' + i);
                    days.appendChild(b);
                });
                const actions = row.insertCell();
                actions.innerHTML =
                    '<button class="' + (s.enabled ? '' : 'off') + '" onclick="post(\'/api/schedules/' + s.id + '/toggle\')">' + (s.enabled ? 'On' : 'Off') + '</button>' +
                    '<button onclick="request(\'DELETE\', \'/api/schedules/' + s.id + '\')">Delete</button>';
            }
        }
        function patch(id, body) { request('PATCH', '/api/schedules/' + id, body); }

        async function loadStatus() {
            const res = await fetch('/api/status');
            const data = await res.json();
            renderNext(data.next);
            renderSchedules(data.schedules);
            document.getElementById('stats').textContent =
                data.scheduleCount + ' schedule(s), ' + data.enabledCount + ' enabled';
            document.getElementById('arm').textContent = data.armed ? 'Armed' : 'Arm';
            document.getElementById('state').textContent = 'Playback: ' + data.playback.state
                + (data.degraded ? ' | storage unavailable, changes are not saved' : '');
            document.getElementById('volume').value = data.volume;
            const sound = document.getElementById('sound');
            if (sound.options.length === 0 && data.sounds) {
                for (const s of data.sounds) sound.add(new Option(s.name, s.id));
            }
        }

        function connect() {
            const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/ws');
            ws.onmessage = (e) => {
                const msg = JSON.parse(e.data);
                switch (msg.kind) {
                case 'tick': renderNext(msg.next); break;
                case 'notice': document.getElementById('notice').textContent = msg.message; break;
                case 'playback': document.getElementById('state').textContent = 'Playback: ' + msg.state; break;
                case 'schedules': case 'armed': case 'disarmed': loadStatus(); break;
                }
            };
            ws.onclose = () => setTimeout(connect, 3000);
        }

        loadStatus();
        connect();
    </script>
</body>
</html>`
