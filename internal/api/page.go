package api

// adminPage is the operator console. It polls /api/messages for history and
// subscribes to /api/ws for live rows.
const adminPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>wechat-relay console</title>
<style>
  body { font-family: sans-serif; margin: 2rem; background: #fafafa; }
  h1 { font-size: 1.3rem; }
  table { border-collapse: collapse; width: 100%; background: #fff; }
  th, td { border: 1px solid #ddd; padding: 6px 10px; font-size: 0.85rem; text-align: left; }
  th { background: #f0f0f0; }
  form { margin: 1rem 0; }
  input, textarea { padding: 6px; margin-right: 8px; }
  #result { margin-left: 8px; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>wechat-relay console</h1>

<form id="push-form">
  <input name="openid" placeholder="openid" required>
  <input name="content" placeholder="message" required>
  <button type="submit">Push</button>
  <span id="result"></span>
</form>

<table id="messages">
  <thead><tr>
    <th>Message ID</th><th>Create Time</th><th>Formatted Time</th><th>Message Type</th>
    <th>From User</th><th>To User</th><th>Content</th><th>Picture URL</th>
    <th>Media ID</th><th>Format</th><th>Thumb Media ID</th>
  </tr></thead>
  <tbody></tbody>
</table>

<script>
const labels = ["Message ID","Create Time","Formatted Time","Message Type",
  "From User","To User","Content","Picture URL","Media ID","Format","Thumb Media ID"];

function addRow(row) {
  const tr = document.createElement("tr");
  for (const label of labels) {
    const td = document.createElement("td");
    td.textContent = row[label] ?? "";
    tr.appendChild(td);
  }
  document.querySelector("#messages tbody").prepend(tr);
}

fetch("/api/messages").then(r => r.json()).then(data => {
  for (const row of data.messages || []) addRow(row);
});

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/ws");
ws.onmessage = ev => addRow(JSON.parse(ev.data));

document.getElementById("push-form").addEventListener("submit", async ev => {
  ev.preventDefault();
  const form = new FormData(ev.target);
  const resp = await fetch("/api/push", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({openid: form.get("openid"), content: form.get("content")}),
  });
  const data = await resp.json();
  document.getElementById("result").textContent = data.status + ": " + data.message;
});
</script>
</body>
</html>
`
